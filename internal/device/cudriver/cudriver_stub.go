//go:build !cuda
// +build !cuda

package cudriver

import "errors"

// Driver is a stub when the binary is built without the cuda tag.
type Driver struct{}

var errNoCUDA = errors.New("binary built without CUDA support")

// Available reports false: no CUDA runtime is linked in.
func Available() bool { return false }

// New fails: the backend manager falls back to the simulated driver.
func New() (*Driver, error) { return nil, errNoCUDA }
