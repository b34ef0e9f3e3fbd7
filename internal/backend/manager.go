package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fxnlabs/tensor-node/internal/config"
	"github.com/fxnlabs/tensor-node/internal/device"
	"github.com/fxnlabs/tensor-node/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Manager constructs one execution context per configured device slot at
// startup and owns their teardown.
type Manager struct {
	mu       sync.RWMutex
	drv      device.Driver
	contexts map[int]*device.ExecutionContext
	log      *zap.Logger
}

// NewManager builds a manager on the best available driver: CUDA when the
// binary carries the cuda tag and a device is visible, the simulated driver
// otherwise.
func NewManager(cfg *config.Config, log *zap.Logger) (*Manager, error) {
	drv, blas, sparse := newDriver(log)
	return NewManagerWithDriver(cfg, drv, blas, sparse, log)
}

// NewManagerWithDriver builds a manager on an explicit driver stack. Any
// construction or flag-validation failure tears down contexts built so far
// and fails the whole startup.
func NewManagerWithDriver(cfg *config.Config, drv device.Driver, blas, sparse device.Library, log *zap.Logger) (*Manager, error) {
	count, err := drv.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("device enumeration failed: %w", err)
	}

	m := &Manager{
		drv:      drv,
		contexts: make(map[int]*device.ExecutionContext, len(cfg.Backend.Devices)),
		log:      log.Named("backend"),
	}

	for _, ordinal := range cfg.Backend.Devices {
		if ordinal < 0 || ordinal >= count {
			_ = m.Close()
			return nil, fmt.Errorf("configured device %d out of range (driver reports %d devices)", ordinal, count)
		}
		if _, dup := m.contexts[ordinal]; dup {
			_ = m.Close()
			return nil, fmt.Errorf("device %d configured twice", ordinal)
		}

		id := device.DeviceID{Ordinal: ordinal, Kind: device.KindGPU}
		ctx, err := device.New(drv, blas, sparse, id, cfg.Backend.Seed, log)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		if err := applyFlags(ctx, cfg.Backend.Flags); err != nil {
			_ = ctx.Close()
			_ = m.Close()
			return nil, err
		}
		m.contexts[ordinal] = ctx
		metrics.DeviceCapabilityMajor.WithLabelValues(id.String()).Set(float64(ctx.Capability().Major))
	}

	metrics.ManagedContexts.Set(float64(len(m.contexts)))
	m.log.Info("backend ready", zap.Int("contexts", len(m.contexts)))
	return m, nil
}

// applyFlags pushes configured execution modes onto a fresh context.
// Capability-gated validation applies, so an impossible configuration fails
// startup instead of being silently dropped.
func applyFlags(ctx *device.ExecutionContext, f config.Flags) error {
	requested := []struct {
		flag    device.Flag
		enabled bool
	}{
		{device.FlagQuantized, f.Quantized},
		{device.FlagPrecomputedScale, f.PrecomputedScale},
		{device.FlagTensorCoreGemm, f.TensorCoreGemm},
		{device.FlagFused, f.Fused},
		{device.FlagMatrixDump, f.MatrixDump},
	}
	for _, r := range requested {
		if !r.enabled {
			continue
		}
		if err := ctx.SetFlag(r.flag, true); err != nil {
			return err
		}
	}
	return nil
}

// Context returns the execution context bound to a device ordinal.
func (m *Manager) Context(ordinal int) (*device.ExecutionContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.contexts[ordinal]
	if !ok {
		return nil, fmt.Errorf("no execution context for device %d", ordinal)
	}
	return ctx, nil
}

// Ordinals returns the managed device ordinals in ascending order.
func (m *Manager) Ordinals() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ordinals := make([]int, 0, len(m.contexts))
	for ordinal := range m.contexts {
		ordinals = append(ordinals, ordinal)
	}
	sort.Ints(ordinals)
	return ordinals
}

// DeviceInfo reports the name, memory and capability of a managed device.
func (m *Manager) DeviceInfo(ordinal int) (DeviceInfo, error) {
	ctx, err := m.Context(ordinal)
	if err != nil {
		return DeviceInfo{}, err
	}
	name, err := m.drv.DeviceName(ordinal)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("device %d name query failed: %w", ordinal, err)
	}
	total, err := m.drv.TotalMemory(ordinal)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("device %d memory query failed: %w", ordinal, err)
	}
	return DeviceInfo{
		Ordinal:     ordinal,
		Name:        name,
		TotalMemory: total,
		Capability:  ctx.Capability(),
	}, nil
}

// Close tears down every managed context. Contexts that never created a
// handle release nothing beyond their scalar constants.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, ctx := range m.contexts {
		err = multierr.Append(err, ctx.Close())
	}
	m.contexts = map[int]*device.ExecutionContext{}
	metrics.ManagedContexts.Set(0)
	return err
}
