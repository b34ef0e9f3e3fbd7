package device_test

import (
	"testing"

	"github.com/fxnlabs/tensor-node/internal/device"
	"github.com/fxnlabs/tensor-node/internal/device/simdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func turingSpec() simdriver.DeviceSpec {
	return simdriver.DefaultSpec() // compute capability 7.5
}

func pascalSpec() simdriver.DeviceSpec {
	spec := simdriver.DefaultSpec()
	spec.Capability = device.Capability{Major: 6, Minor: 1}
	return spec
}

func TestStoredFlags(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	stored := []device.Flag{
		device.FlagQuantized,
		device.FlagPrecomputedScale,
		device.FlagFused,
		device.FlagMatrixDump,
	}
	for _, f := range stored {
		t.Run(f.String(), func(t *testing.T) {
			assert.False(t, ctx.FlagEnabled(f))
			require.NoError(t, ctx.SetFlag(f, true))
			assert.True(t, ctx.FlagEnabled(f))
			require.NoError(t, ctx.SetFlag(f, false))
			assert.False(t, ctx.FlagEnabled(f))
		})
	}
}

func TestTensorCoreGemm_CapabilityGated(t *testing.T) {
	t.Run("allowed on 7.5", func(t *testing.T) {
		ctx, _ := newTestContext(t, turingSpec())
		defer ctx.Close()

		require.NoError(t, ctx.SetFlag(device.FlagTensorCoreGemm, true))
		assert.True(t, ctx.FlagEnabled(device.FlagTensorCoreGemm))
	})

	t.Run("rejected on 6.1", func(t *testing.T) {
		ctx, _ := newTestContext(t, pascalSpec())
		defer ctx.Close()

		err := ctx.SetFlag(device.FlagTensorCoreGemm, true)
		var unsupported *device.UnsupportedFeatureError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, 7, unsupported.RequiredMajor)
		assert.Equal(t, device.Capability{Major: 6, Minor: 1}, unsupported.Actual)
		assert.False(t, ctx.FlagEnabled(device.FlagTensorCoreGemm))
	})

	t.Run("disabling never needs capability", func(t *testing.T) {
		ctx, _ := newTestContext(t, pascalSpec())
		defer ctx.Close()

		require.NoError(t, ctx.SetFlag(device.FlagTensorCoreGemm, false))
		assert.False(t, ctx.FlagEnabled(device.FlagTensorCoreGemm))
	})
}

func TestInertFlags_NeverChangeState(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	inert := []device.Flag{
		device.FlagLegacyReducedPrecision,
		device.FlagShiftedArithmetic,
		device.FlagShiftedArithmeticAll,
		device.FlagLegacyBatchedGemm,
	}
	for _, f := range inert {
		t.Run(f.String(), func(t *testing.T) {
			require.NoError(t, ctx.SetFlag(f, true))
			assert.False(t, ctx.FlagEnabled(f))
			require.NoError(t, ctx.SetFlag(f, false))
			assert.False(t, ctx.FlagEnabled(f))
		})
	}
}

func TestInertFlags_NoticeLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sim := simdriver.New()
	ctx, err := device.New(sim, sim.Blas(), sim.Sparse(),
		device.DeviceID{Ordinal: 0, Kind: device.KindGPU}, 42, zap.New(core))
	require.NoError(t, err)
	defer ctx.Close()

	notices := func() []observer.LoggedEntry {
		return logs.FilterMessage("setting has no effect on this device class").All()
	}

	require.NoError(t, ctx.SetFlag(device.FlagShiftedArithmetic, true))
	require.NoError(t, ctx.SetFlag(device.FlagShiftedArithmetic, false))
	require.NoError(t, ctx.SetFlag(device.FlagShiftedArithmetic, true))
	assert.Len(t, notices(), 1)

	// A different inert flag gets its own single notice.
	require.NoError(t, ctx.SetFlag(device.FlagLegacyReducedPrecision, true))
	require.NoError(t, ctx.SetFlag(device.FlagLegacyReducedPrecision, true))
	assert.Len(t, notices(), 2)
}

func TestEndToEnd_TensorCoreConfiguration(t *testing.T) {
	// Construct for device 0, seed 42 on a 7.5 part: enabling tensor cores
	// succeeds.
	ctx, _ := newTestContext(t, turingSpec())
	require.Equal(t, device.Capability{Major: 7, Minor: 5}, ctx.Capability())
	require.NoError(t, ctx.SetFlag(device.FlagTensorCoreGemm, true))
	assert.True(t, ctx.FlagEnabled(device.FlagTensorCoreGemm))
	require.NoError(t, ctx.Close())

	// Same construction on a 6.1 part: enabling fails and the flag stays
	// disabled.
	ctx, _ = newTestContext(t, pascalSpec())
	require.Equal(t, device.Capability{Major: 6, Minor: 1}, ctx.Capability())
	err := ctx.SetFlag(device.FlagTensorCoreGemm, true)
	var unsupported *device.UnsupportedFeatureError
	require.ErrorAs(t, err, &unsupported)
	assert.False(t, ctx.FlagEnabled(device.FlagTensorCoreGemm))
	require.NoError(t, ctx.Close())
}
