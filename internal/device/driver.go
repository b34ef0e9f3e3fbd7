package device

// DevicePtr is an opaque reference to device-resident memory. The zero value
// is never a valid allocation.
type DevicePtr uint64

// Handle is an opaque reference to a vendor numeric-library context. The zero
// value is never a valid handle.
type Handle uint64

// Stream identifies an execution stream on a device. Work enqueued on the
// same stream executes in issue order.
type Stream uint64

// DefaultStream is the per-thread default execution stream.
const DefaultStream Stream = 0

// Attr selects a device attribute for Driver.DeviceAttribute queries.
type Attr int

const (
	AttrComputeCapabilityMajor Attr = iota
	AttrComputeCapabilityMinor
	AttrMultiprocessorCount
)

func (a Attr) String() string {
	switch a {
	case AttrComputeCapabilityMajor:
		return "computeCapabilityMajor"
	case AttrComputeCapabilityMinor:
		return "computeCapabilityMinor"
	case AttrMultiprocessorCount:
		return "multiprocessorCount"
	default:
		return "unknown"
	}
}

// Driver abstracts the device/driver API the execution context runs against.
// The "current device" is process-wide ambient state in the underlying
// runtime, so callers must treat SetDevice as affecting all subsequent calls;
// the execution context re-asserts the binding before device-affecting work
// rather than relying on it being unchanged.
//
// Implementations: internal/device/cudriver (CUDA runtime, behind the cuda
// build tag) and internal/device/simdriver (host-memory simulation).
type Driver interface {
	// DeviceCount reports the number of devices visible to the driver.
	DeviceCount() (int, error)

	// SetDevice makes ordinal the active device for subsequent calls.
	// Idempotent.
	SetDevice(ordinal int) error

	// DeviceAttribute queries a single attribute of a device.
	DeviceAttribute(ordinal int, attr Attr) (int, error)

	// DeviceName returns the marketing name of a device.
	DeviceName(ordinal int) (string, error)

	// TotalMemory returns the device's total global memory in bytes.
	TotalMemory(ordinal int) (uint64, error)

	// StreamSynchronize blocks until all work enqueued on the stream by the
	// calling thread has completed.
	StreamSynchronize(stream Stream) error

	// MallocFloat32 allocates room for n float32 values on the active device.
	MallocFloat32(n int) (DevicePtr, error)

	// CopyToDevice copies host values into a device allocation.
	CopyToDevice(dst DevicePtr, src []float32) error

	// CopyToHost copies a device allocation back into host memory.
	CopyToHost(dst []float32, src DevicePtr) error

	// Free releases a device allocation.
	Free(ptr DevicePtr) error
}

// Library abstracts a vendor numeric library that hands out opaque contexts
// (cuBLAS, cuSPARSE). Contexts are created against the active device and must
// be destroyed on the same device.
type Library interface {
	// Name identifies the library in logs and metrics ("blas", "sparse").
	Name() string

	// Create allocates a new library context on the active device.
	Create() (Handle, error)

	// SetStream binds a context to an execution stream. Subsequent library
	// calls through the handle are enqueued on that stream.
	SetStream(h Handle, stream Stream) error

	// Destroy releases a library context.
	Destroy(h Handle) error
}
