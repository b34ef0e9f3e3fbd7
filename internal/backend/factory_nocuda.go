//go:build !cuda
// +build !cuda

package backend

import (
	"github.com/fxnlabs/tensor-node/internal/device"
	"github.com/fxnlabs/tensor-node/internal/device/simdriver"
	"go.uber.org/zap"
)

// newDriver returns the simulated driver stack when the binary is built
// without CUDA support.
func newDriver(log *zap.Logger) (device.Driver, device.Library, device.Library) {
	log.Info("CUDA support not compiled in, using simulated driver")
	sim := simdriver.New()
	return sim, sim.Blas(), sim.Sparse()
}
