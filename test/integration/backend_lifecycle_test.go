//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"

	"github.com/fxnlabs/tensor-node/internal/backend"
	"github.com/fxnlabs/tensor-node/internal/config"
	"github.com/fxnlabs/tensor-node/internal/device"
	"github.com/fxnlabs/tensor-node/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestBackendLifecycle_EndToEnd(t *testing.T) {
	var mgr *backend.Manager

	app := fxtest.New(t,
		fx.Provide(
			func() *config.Config {
				cfg := config.Default()
				cfg.Backend.Seed = 42
				return cfg
			},
			func() (*zap.Logger, error) {
				return logger.New("info")
			},
			backend.NewManager,
		),
		fx.Populate(&mgr),
		fx.Invoke(func(lc fx.Lifecycle, m *backend.Manager) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return m.Close()
				},
			})
		}),
	)

	app.RequireStart()

	ctx, err := mgr.Context(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ctx.Seed())
	assert.GreaterOrEqual(t, ctx.Capability().Major, 1)

	// Both library contexts materialize lazily and return stable handles.
	h1, err := ctx.BlasHandle()
	require.NoError(t, err)
	h2, err := ctx.BlasHandle()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	_, err = ctx.SparseHandle()
	require.NoError(t, err)

	require.NoError(t, ctx.Synchronize())

	// Flag surface: inert flags stay disabled, stored flags roundtrip.
	require.NoError(t, ctx.SetFlag(device.FlagShiftedArithmetic, true))
	assert.False(t, ctx.FlagEnabled(device.FlagShiftedArithmetic))
	require.NoError(t, ctx.SetFlag(device.FlagQuantized, true))
	assert.True(t, ctx.FlagEnabled(device.FlagQuantized))

	info, err := mgr.DeviceInfo(0)
	require.NoError(t, err)
	assert.NotEmpty(t, info.Name)
	assert.Greater(t, info.TotalMemory, uint64(0))

	app.RequireStop()

	_, err = mgr.Context(0)
	assert.Error(t, err)
}
