//go:build cuda
// +build cuda

package backend

import (
	"github.com/fxnlabs/tensor-node/internal/device"
	"github.com/fxnlabs/tensor-node/internal/device/cudriver"
	"github.com/fxnlabs/tensor-node/internal/device/simdriver"
	"go.uber.org/zap"
)

// newDriver returns the CUDA driver stack when a device is visible, falling
// back to the simulated driver otherwise.
func newDriver(log *zap.Logger) (device.Driver, device.Library, device.Library) {
	if cudriver.Available() {
		drv, err := cudriver.New()
		if err == nil {
			log.Info("using CUDA driver")
			return drv, drv.Blas(), drv.Sparse()
		}
		log.Warn("CUDA driver initialization failed, falling back to simulated driver", zap.Error(err))
	} else {
		log.Info("no CUDA device visible, using simulated driver")
	}
	sim := simdriver.New()
	return sim, sim.Blas(), sim.Sparse()
}
