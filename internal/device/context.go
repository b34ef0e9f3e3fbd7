package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/fxnlabs/tensor-node/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type slotState uint8

const (
	slotUninitialized slotState = iota
	slotInitializing
	slotReady
)

// handleSlot holds one lazily created vendor-library context. The mutex
// guards the whole check-and-create sequence so at most one creation occurs
// even under racing first calls.
type handleSlot struct {
	mu     sync.Mutex
	state  slotState
	handle Handle
	lib    Library
}

// ExecutionContext owns the accelerator resources of a single device: the
// device binding, the detected compute capability, two lazily created vendor
// numeric-library contexts, two device-resident scalar constants (0.0 and
// 1.0) used as GEMM scale factors, and the execution-mode flag registry.
//
// Exactly one ExecutionContext governs its handles and scalar allocations.
// After construction, handles and scalars are shared read-only across
// threads; flag writes are configuration-time operations.
type ExecutionContext struct {
	drv  Driver
	id   DeviceID
	seed uint64
	cap  Capability
	log  *zap.Logger

	blas   handleSlot
	sparse handleSlot

	// Device-resident scalars, allocated at construction, never mutated.
	zero DevicePtr
	one  DevicePtr

	flagMu sync.RWMutex
	flags  [flagCount]bool

	// One notice per inert flag for the context's lifetime.
	noticeOnce [flagCount]sync.Once

	closeMu sync.Mutex
	closed  bool
}

// New binds the device, detects its compute capability and allocates the two
// scalar constants. Library contexts are not created here; they materialize
// on first access.
func New(drv Driver, blas, sparse Library, id DeviceID, seed uint64, log *zap.Logger) (*ExecutionContext, error) {
	// Only kinds with a row in the flag effect table may construct a
	// context; anything else would silently lose the capability gate and
	// the inert-flag semantics.
	if _, ok := flagEffects[id.Kind]; !ok {
		return nil, &DeviceError{Device: id, Op: "construct", Err: fmt.Errorf("unsupported device kind %q", id.Kind)}
	}
	c := &ExecutionContext{
		drv:  drv,
		id:   id,
		seed: seed,
		log:  log.Named("device").With(zap.Stringer("device", id)),
	}
	c.blas.lib = blas
	c.sparse.lib = sparse

	if err := c.BindDevice(); err != nil {
		return nil, err
	}

	major, err := drv.DeviceAttribute(id.Ordinal, AttrComputeCapabilityMajor)
	if err != nil {
		return nil, &CapabilityQueryError{Device: id, Attr: AttrComputeCapabilityMajor, Err: err}
	}
	minor, err := drv.DeviceAttribute(id.Ordinal, AttrComputeCapabilityMinor)
	if err != nil {
		return nil, &CapabilityQueryError{Device: id, Attr: AttrComputeCapabilityMinor, Err: err}
	}
	c.cap = Capability{Major: major, Minor: minor}

	if c.zero, err = c.newScalar(0.0); err != nil {
		return nil, err
	}
	if c.one, err = c.newScalar(1.0); err != nil {
		_ = drv.Free(c.zero)
		return nil, err
	}

	c.log.Info("execution context ready",
		zap.Stringer("capability", c.cap),
		zap.Uint64("seed", seed))
	return c, nil
}

func (c *ExecutionContext) newScalar(v float32) (DevicePtr, error) {
	ptr, err := c.drv.MallocFloat32(1)
	if err != nil {
		return 0, &ResourceCreationError{Device: c.id, Resource: "scalar constant", Err: err}
	}
	if err := c.drv.CopyToDevice(ptr, []float32{v}); err != nil {
		_ = c.drv.Free(ptr)
		return 0, &ResourceCreationError{Device: c.id, Resource: "scalar constant", Err: err}
	}
	return ptr, nil
}

// BindDevice makes this context's device the active one for subsequent
// driver calls on the current thread. Idempotent; called internally before
// every device-affecting operation to tolerate interleaved use of multiple
// devices from the same thread.
func (c *ExecutionContext) BindDevice() error {
	if err := c.drv.SetDevice(c.id.Ordinal); err != nil {
		return &DeviceError{Device: c.id, Op: "bind", Err: err}
	}
	metrics.DeviceBinds.WithLabelValues(c.id.String()).Inc()
	return nil
}

// Synchronize blocks the calling thread until all work enqueued on this
// device's default stream by that thread has completed.
func (c *ExecutionContext) Synchronize() error {
	if err := c.BindDevice(); err != nil {
		return err
	}
	start := time.Now()
	if err := c.drv.StreamSynchronize(DefaultStream); err != nil {
		return &SynchronizationError{Device: c.id, Err: err}
	}
	metrics.SynchronizeDuration.Observe(time.Since(start).Seconds())
	return nil
}

// BlasHandle returns the BLAS library context, creating it on first call.
func (c *ExecutionContext) BlasHandle() (Handle, error) {
	return c.acquire(&c.blas)
}

// SparseHandle returns the sparse library context, creating it on first call.
func (c *ExecutionContext) SparseHandle() (Handle, error) {
	return c.acquire(&c.sparse)
}

// acquire runs the lazy-init protocol for one slot: re-bind the device,
// create the vendor context, bind it to the default stream, cache it. The
// slot lock covers the whole sequence, so concurrent first calls observe
// exactly one creation.
func (c *ExecutionContext) acquire(slot *handleSlot) (Handle, error) {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.state == slotReady {
		return slot.handle, nil
	}

	slot.state = slotInitializing
	if err := c.BindDevice(); err != nil {
		slot.state = slotUninitialized
		return 0, err
	}
	h, err := slot.lib.Create()
	if err != nil {
		slot.state = slotUninitialized
		return 0, &ResourceCreationError{Device: c.id, Resource: slot.lib.Name() + " handle", Err: err}
	}
	if err := slot.lib.SetStream(h, DefaultStream); err != nil {
		_ = slot.lib.Destroy(h)
		slot.state = slotUninitialized
		return 0, &ResourceCreationError{Device: c.id, Resource: slot.lib.Name() + " handle", Err: err}
	}

	slot.handle = h
	slot.state = slotReady
	metrics.HandleCreations.WithLabelValues(slot.lib.Name()).Inc()
	c.log.Debug("library handle created", zap.String("library", slot.lib.Name()))
	return h, nil
}

// Zero returns the device-resident float32 constant 0.0. The reference is
// stable for the context's lifetime.
func (c *ExecutionContext) Zero() DevicePtr { return c.zero }

// One returns the device-resident float32 constant 1.0. The reference is
// stable for the context's lifetime.
func (c *ExecutionContext) One() DevicePtr { return c.one }

// Capability returns the compute capability detected at construction.
func (c *ExecutionContext) Capability() Capability { return c.cap }

// Device returns the device identifier this context is bound to.
func (c *ExecutionContext) Device() DeviceID { return c.id }

// Seed returns the initialization seed for stochastic operations.
func (c *ExecutionContext) Seed() uint64 { return c.seed }

// SetFlag applies an execution-mode setting. Stored flags take the value
// verbatim; tensor-core GEMM additionally requires compute capability 7.x or
// newer when enabling; inert inherited flags log a one-time notice and keep
// their fixed disabled state.
func (c *ExecutionContext) SetFlag(f Flag, enabled bool) error {
	switch flagEffects[c.id.Kind][f] {
	case effectInert:
		c.noticeOnce[f].Do(func() {
			c.log.Info("setting has no effect on this device class",
				zap.Stringer("flag", f),
				zap.Bool("requested", enabled))
		})
		return nil
	case effectTensorCoreGated:
		if enabled && c.cap.Major < tensorCoreMinMajor {
			return &UnsupportedFeatureError{
				Device:        c.id,
				Feature:       f.String(),
				RequiredMajor: tensorCoreMinMajor,
				Actual:        c.cap,
			}
		}
	}

	c.flagMu.Lock()
	c.flags[f] = enabled
	c.flagMu.Unlock()
	metrics.FlagToggles.WithLabelValues(f.String()).Inc()
	return nil
}

// FlagEnabled reads an execution-mode setting. Inert flags always read false.
func (c *ExecutionContext) FlagEnabled(f Flag) bool {
	if flagEffects[c.id.Kind][f] == effectInert {
		return false
	}
	c.flagMu.RLock()
	defer c.flagMu.RUnlock()
	return c.flags[f]
}

// Close re-binds the device, destroys each initialized library context
// exactly once and frees the scalar constants. Slots that were never
// accessed are skipped. Safe to call more than once.
func (c *ExecutionContext) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.BindDevice()
	for _, slot := range []*handleSlot{&c.blas, &c.sparse} {
		slot.mu.Lock()
		if slot.state == slotReady {
			if derr := slot.lib.Destroy(slot.handle); derr != nil {
				err = multierr.Append(err, &DeviceError{Device: c.id, Op: "destroy " + slot.lib.Name() + " handle", Err: derr})
			}
			slot.handle = 0
			slot.state = slotUninitialized
		}
		slot.mu.Unlock()
	}
	if c.zero != 0 {
		if ferr := c.drv.Free(c.zero); ferr != nil {
			err = multierr.Append(err, &DeviceError{Device: c.id, Op: "free scalar", Err: ferr})
		}
		c.zero = 0
	}
	if c.one != 0 {
		if ferr := c.drv.Free(c.one); ferr != nil {
			err = multierr.Append(err, &DeviceError{Device: c.id, Op: "free scalar", Err: ferr})
		}
		c.one = 0
	}

	c.log.Info("execution context closed")
	return err
}
