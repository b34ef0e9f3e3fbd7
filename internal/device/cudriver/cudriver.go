//go:build cuda
// +build cuda

// Package cudriver implements the device driver and vendor library
// interfaces against the CUDA runtime, cuBLAS and cuSPARSE.
package cudriver

/*
#cgo LDFLAGS: -lcudart -lcublas -lcusparse

#include <cuda_runtime_api.h>
#include <cublas_v2.h>
#include <cusparse.h>

// cudaStreamPerThread is a macro, not a symbol cgo can reference directly.
static cudaStream_t perThreadStream() { return cudaStreamPerThread; }
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/fxnlabs/tensor-node/internal/device"
)

// Driver talks to the CUDA runtime. DevicePtr values carry raw device
// addresses; Handle values carry the vendor library's context pointers.
type Driver struct {
	blas   *Blas
	sparse *Sparse
}

var _ device.Driver = (*Driver)(nil)

// Available reports whether at least one CUDA device is visible.
func Available() bool {
	var n C.int
	return C.cudaGetDeviceCount(&n) == C.cudaSuccess && n > 0
}

// New creates a CUDA driver. Fails if no device is visible.
func New() (*Driver, error) {
	var n C.int
	if rc := C.cudaGetDeviceCount(&n); rc != C.cudaSuccess {
		return nil, fmt.Errorf("cudaGetDeviceCount: %s", cudaErrorString(rc))
	}
	if n == 0 {
		return nil, fmt.Errorf("no CUDA devices found")
	}
	d := &Driver{}
	d.blas = &Blas{}
	d.sparse = &Sparse{}
	return d, nil
}

// Blas returns the cuBLAS library binding.
func (d *Driver) Blas() *Blas { return d.blas }

// Sparse returns the cuSPARSE library binding.
func (d *Driver) Sparse() *Sparse { return d.sparse }

func (d *Driver) DeviceCount() (int, error) {
	var n C.int
	if rc := C.cudaGetDeviceCount(&n); rc != C.cudaSuccess {
		return 0, fmt.Errorf("cudaGetDeviceCount: %s", cudaErrorString(rc))
	}
	return int(n), nil
}

func (d *Driver) SetDevice(ordinal int) error {
	if rc := C.cudaSetDevice(C.int(ordinal)); rc != C.cudaSuccess {
		return fmt.Errorf("cudaSetDevice(%d): %s", ordinal, cudaErrorString(rc))
	}
	return nil
}

func (d *Driver) DeviceAttribute(ordinal int, attr device.Attr) (int, error) {
	var cattr C.enum_cudaDeviceAttr
	switch attr {
	case device.AttrComputeCapabilityMajor:
		cattr = C.cudaDevAttrComputeCapabilityMajor
	case device.AttrComputeCapabilityMinor:
		cattr = C.cudaDevAttrComputeCapabilityMinor
	case device.AttrMultiprocessorCount:
		cattr = C.cudaDevAttrMultiProcessorCount
	default:
		return 0, fmt.Errorf("unknown attribute %v", attr)
	}
	var value C.int
	if rc := C.cudaDeviceGetAttribute(&value, cattr, C.int(ordinal)); rc != C.cudaSuccess {
		return 0, fmt.Errorf("cudaDeviceGetAttribute(%v, %d): %s", attr, ordinal, cudaErrorString(rc))
	}
	return int(value), nil
}

func (d *Driver) DeviceName(ordinal int) (string, error) {
	var props C.struct_cudaDeviceProp
	if rc := C.cudaGetDeviceProperties(&props, C.int(ordinal)); rc != C.cudaSuccess {
		return "", fmt.Errorf("cudaGetDeviceProperties(%d): %s", ordinal, cudaErrorString(rc))
	}
	return C.GoString(&props.name[0]), nil
}

func (d *Driver) TotalMemory(ordinal int) (uint64, error) {
	var props C.struct_cudaDeviceProp
	if rc := C.cudaGetDeviceProperties(&props, C.int(ordinal)); rc != C.cudaSuccess {
		return 0, fmt.Errorf("cudaGetDeviceProperties(%d): %s", ordinal, cudaErrorString(rc))
	}
	return uint64(props.totalGlobalMem), nil
}

func (d *Driver) StreamSynchronize(stream device.Stream) error {
	if rc := C.cudaStreamSynchronize(cudaStream(stream)); rc != C.cudaSuccess {
		return fmt.Errorf("cudaStreamSynchronize: %s", cudaErrorString(rc))
	}
	return nil
}

func (d *Driver) MallocFloat32(n int) (device.DevicePtr, error) {
	var ptr unsafe.Pointer
	if rc := C.cudaMalloc(&ptr, C.size_t(n)*C.sizeof_float); rc != C.cudaSuccess {
		return 0, fmt.Errorf("cudaMalloc(%d floats): %s", n, cudaErrorString(rc))
	}
	return device.DevicePtr(uintptr(ptr)), nil
}

func (d *Driver) CopyToDevice(dst device.DevicePtr, src []float32) error {
	if len(src) == 0 {
		return nil
	}
	rc := C.cudaMemcpy(unsafe.Pointer(uintptr(dst)), unsafe.Pointer(&src[0]),
		C.size_t(len(src))*C.sizeof_float, C.cudaMemcpyHostToDevice)
	if rc != C.cudaSuccess {
		return fmt.Errorf("cudaMemcpy host-to-device: %s", cudaErrorString(rc))
	}
	return nil
}

func (d *Driver) CopyToHost(dst []float32, src device.DevicePtr) error {
	if len(dst) == 0 {
		return nil
	}
	rc := C.cudaMemcpy(unsafe.Pointer(&dst[0]), unsafe.Pointer(uintptr(src)),
		C.size_t(len(dst))*C.sizeof_float, C.cudaMemcpyDeviceToHost)
	if rc != C.cudaSuccess {
		return fmt.Errorf("cudaMemcpy device-to-host: %s", cudaErrorString(rc))
	}
	return nil
}

func (d *Driver) Free(ptr device.DevicePtr) error {
	if rc := C.cudaFree(unsafe.Pointer(uintptr(ptr))); rc != C.cudaSuccess {
		return fmt.Errorf("cudaFree: %s", cudaErrorString(rc))
	}
	return nil
}

// cudaStream maps the driver-neutral stream identifier onto a CUDA stream.
// The default stream maps to the per-thread stream so work issued through
// this context does not serialize against the legacy global stream.
func cudaStream(s device.Stream) C.cudaStream_t {
	if s == device.DefaultStream {
		return C.perThreadStream()
	}
	return C.cudaStream_t(unsafe.Pointer(uintptr(s)))
}

func cudaErrorString(rc C.cudaError_t) string {
	return C.GoString(C.cudaGetErrorString(rc))
}

// Blas binds the cuBLAS context protocol.
type Blas struct{}

var _ device.Library = (*Blas)(nil)

func (*Blas) Name() string { return "blas" }

func (*Blas) Create() (device.Handle, error) {
	var h C.cublasHandle_t
	if st := C.cublasCreate_v2(&h); st != C.CUBLAS_STATUS_SUCCESS {
		return 0, fmt.Errorf("cublasCreate: status %d", int(st))
	}
	return device.Handle(uintptr(unsafe.Pointer(h))), nil
}

func (*Blas) SetStream(h device.Handle, stream device.Stream) error {
	ch := C.cublasHandle_t(unsafe.Pointer(uintptr(h)))
	if st := C.cublasSetStream_v2(ch, cudaStream(stream)); st != C.CUBLAS_STATUS_SUCCESS {
		return fmt.Errorf("cublasSetStream: status %d", int(st))
	}
	return nil
}

func (*Blas) Destroy(h device.Handle) error {
	ch := C.cublasHandle_t(unsafe.Pointer(uintptr(h)))
	if st := C.cublasDestroy_v2(ch); st != C.CUBLAS_STATUS_SUCCESS {
		return fmt.Errorf("cublasDestroy: status %d", int(st))
	}
	return nil
}

// Sparse binds the cuSPARSE context protocol.
type Sparse struct{}

var _ device.Library = (*Sparse)(nil)

func (*Sparse) Name() string { return "sparse" }

func (*Sparse) Create() (device.Handle, error) {
	var h C.cusparseHandle_t
	if st := C.cusparseCreate(&h); st != C.CUSPARSE_STATUS_SUCCESS {
		return 0, fmt.Errorf("cusparseCreate: status %d", int(st))
	}
	return device.Handle(uintptr(unsafe.Pointer(h))), nil
}

func (*Sparse) SetStream(h device.Handle, stream device.Stream) error {
	ch := C.cusparseHandle_t(unsafe.Pointer(uintptr(h)))
	if st := C.cusparseSetStream(ch, cudaStream(stream)); st != C.CUSPARSE_STATUS_SUCCESS {
		return fmt.Errorf("cusparseSetStream: status %d", int(st))
	}
	return nil
}

func (*Sparse) Destroy(h device.Handle) error {
	ch := C.cusparseHandle_t(unsafe.Pointer(uintptr(h)))
	if st := C.cusparseDestroy(ch); st != C.CUSPARSE_STATUS_SUCCESS {
		return fmt.Errorf("cusparseDestroy: status %d", int(st))
	}
	return nil
}
