package backend

import (
	"testing"

	"github.com/fxnlabs/tensor-node/internal/config"
	"github.com/fxnlabs/tensor-node/internal/device"
	"github.com/fxnlabs/tensor-node/internal/device/simdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func twoDeviceSim() *simdriver.Driver {
	return simdriver.New(
		simdriver.DeviceSpec{Name: "sim-a", Capability: device.Capability{Major: 7, Minor: 5}, TotalMemory: 16 << 30},
		simdriver.DeviceSpec{Name: "sim-b", Capability: device.Capability{Major: 6, Minor: 1}, TotalMemory: 8 << 30},
	)
}

func testConfig(devices ...int) *config.Config {
	cfg := config.Default()
	cfg.Backend.Devices = devices
	return cfg
}

func TestNewManagerWithDriver(t *testing.T) {
	sim := twoDeviceSim()
	mgr, err := NewManagerWithDriver(testConfig(0, 1), sim, sim.Blas(), sim.Sparse(), zap.NewNop())
	require.NoError(t, err)
	defer mgr.Close()

	assert.Equal(t, []int{0, 1}, mgr.Ordinals())

	ctx, err := mgr.Context(0)
	require.NoError(t, err)
	assert.Equal(t, device.Capability{Major: 7, Minor: 5}, ctx.Capability())
	assert.Equal(t, uint64(42), ctx.Seed())

	ctx, err = mgr.Context(1)
	require.NoError(t, err)
	assert.Equal(t, device.Capability{Major: 6, Minor: 1}, ctx.Capability())

	_, err = mgr.Context(2)
	assert.Error(t, err)
}

func TestNewManagerWithDriver_InvalidDevices(t *testing.T) {
	t.Run("out of range", func(t *testing.T) {
		sim := twoDeviceSim()
		_, err := NewManagerWithDriver(testConfig(0, 5), sim, sim.Blas(), sim.Sparse(), zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})

	t.Run("duplicate ordinal", func(t *testing.T) {
		sim := twoDeviceSim()
		_, err := NewManagerWithDriver(testConfig(0, 0), sim, sim.Blas(), sim.Sparse(), zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configured twice")
	})
}

func TestNewManagerWithDriver_AppliesConfiguredFlags(t *testing.T) {
	sim := twoDeviceSim()
	cfg := testConfig(0)
	cfg.Backend.Flags.Quantized = true
	cfg.Backend.Flags.TensorCoreGemm = true

	mgr, err := NewManagerWithDriver(cfg, sim, sim.Blas(), sim.Sparse(), zap.NewNop())
	require.NoError(t, err)
	defer mgr.Close()

	ctx, err := mgr.Context(0)
	require.NoError(t, err)
	assert.True(t, ctx.FlagEnabled(device.FlagQuantized))
	assert.True(t, ctx.FlagEnabled(device.FlagTensorCoreGemm))
	assert.False(t, ctx.FlagEnabled(device.FlagFused))
}

func TestNewManagerWithDriver_TensorCoreConfigRejectedOnOldDevice(t *testing.T) {
	sim := twoDeviceSim()
	cfg := testConfig(1) // 6.1 device
	cfg.Backend.Flags.TensorCoreGemm = true

	_, err := NewManagerWithDriver(cfg, sim, sim.Blas(), sim.Sparse(), zap.NewNop())
	var unsupported *device.UnsupportedFeatureError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 7, unsupported.RequiredMajor)
}

func TestManager_DeviceInfo(t *testing.T) {
	sim := twoDeviceSim()
	mgr, err := NewManagerWithDriver(testConfig(0, 1), sim, sim.Blas(), sim.Sparse(), zap.NewNop())
	require.NoError(t, err)
	defer mgr.Close()

	info, err := mgr.DeviceInfo(1)
	require.NoError(t, err)
	assert.Equal(t, DeviceInfo{
		Ordinal:     1,
		Name:        "sim-b",
		TotalMemory: 8 << 30,
		Capability:  device.Capability{Major: 6, Minor: 1},
	}, info)

	_, err = mgr.DeviceInfo(3)
	assert.Error(t, err)
}

func TestManager_CloseTearsDownContexts(t *testing.T) {
	sim := twoDeviceSim()
	mgr, err := NewManagerWithDriver(testConfig(0, 1), sim, sim.Blas(), sim.Sparse(), zap.NewNop())
	require.NoError(t, err)

	ctx, err := mgr.Context(0)
	require.NoError(t, err)
	_, err = ctx.BlasHandle()
	require.NoError(t, err)

	require.NoError(t, mgr.Close())
	assert.Equal(t, 1, sim.Blas().Destroys())
	assert.Equal(t, 0, sim.Sparse().Destroys())
	assert.Equal(t, 0, sim.LiveAllocations())

	_, err = mgr.Context(0)
	assert.Error(t, err)

	// Close is safe to repeat.
	require.NoError(t, mgr.Close())
}

func TestNewManager_FallsBackToSimulatedDriver(t *testing.T) {
	mgr, err := NewManager(config.Default(), zap.NewNop())
	require.NoError(t, err)
	defer mgr.Close()

	ctx, err := mgr.Context(0)
	require.NoError(t, err)
	assert.NoError(t, ctx.Synchronize())
}
