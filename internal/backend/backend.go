// Package backend assembles per-device execution contexts for the numeric
// dispatch layer: it selects a driver (CUDA when compiled in and present,
// the simulated driver otherwise), constructs one context per configured
// device slot and owns their teardown.
package backend

import (
	"github.com/fxnlabs/tensor-node/internal/device"
)

// Backend is the abstract operation surface a device execution context
// exposes to numeric kernels: device selection, synchronization, lazy
// library handles, the two universal GEMM scale constants and the
// execution-mode flags consulted on every dispatch decision.
type Backend interface {
	// BindDevice makes the context's device the active one for subsequent
	// accelerator calls on the current thread. Idempotent.
	BindDevice() error

	// Synchronize blocks until work enqueued on the default stream by the
	// calling thread has completed.
	Synchronize() error

	// BlasHandle and SparseHandle return the vendor library contexts,
	// creating each lazily on first access.
	BlasHandle() (device.Handle, error)
	SparseHandle() (device.Handle, error)

	// Zero and One are stable references to device-resident float32
	// constants 0.0 and 1.0, used as GEMM scale factors.
	Zero() device.DevicePtr
	One() device.DevicePtr

	Capability() device.Capability
	Device() device.DeviceID
	Seed() uint64

	SetFlag(f device.Flag, enabled bool) error
	FlagEnabled(f device.Flag) bool

	// Close releases all owned handles and scalar memory. Safe to call even
	// if no handle was ever created.
	Close() error
}

var _ Backend = (*device.ExecutionContext)(nil)

// DeviceInfo is the reporting surface for one managed device.
type DeviceInfo struct {
	Ordinal     int               `json:"ordinal"`
	Name        string            `json:"name"`
	TotalMemory uint64            `json:"totalMemory"` // in bytes
	Capability  device.Capability `json:"capability"`
}
