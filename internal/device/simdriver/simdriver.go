// Package simdriver is a host-memory simulation of the accelerator driver
// and its vendor numeric libraries. It backs device allocations with plain
// slices, executes BLAS calls synchronously via gonum, and counts context
// creations and destructions so lifecycle tests can observe them. It also
// serves as the runtime fallback when the node is built without CUDA.
package simdriver

import (
	"fmt"
	"sync"

	"github.com/fxnlabs/tensor-node/internal/device"
	"gonum.org/v1/gonum/blas"
	blasimpl "gonum.org/v1/gonum/blas/gonum"
)

var (
	_ device.Driver  = (*Driver)(nil)
	_ device.Library = (*Blas)(nil)
	_ device.Library = (*Sparse)(nil)
)

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	Name            string
	Capability      device.Capability
	TotalMemory     uint64
	Multiprocessors int
}

// DefaultSpec is a single simulated device modeled after a Turing-class GPU.
func DefaultSpec() DeviceSpec {
	return DeviceSpec{
		Name:            "Simulated GPU",
		Capability:      device.Capability{Major: 7, Minor: 5},
		TotalMemory:     16 << 30,
		Multiprocessors: 40,
	}
}

// Driver implements device.Driver against host memory. The zero DevicePtr is
// never handed out, matching the driver contract.
type Driver struct {
	mu      sync.Mutex
	devices []DeviceSpec
	current int
	allocs  map[device.DevicePtr][]float32
	next    uint64

	blas   *Blas
	sparse *Sparse

	// Fault injection knobs for tests. A non-nil error is returned by the
	// corresponding call until cleared.
	SetDeviceErr error
	AttributeErr error
	SyncErr      error
	MallocErr    error
}

// New creates a simulated driver. With no specs it exposes one default
// device.
func New(specs ...DeviceSpec) *Driver {
	if len(specs) == 0 {
		specs = []DeviceSpec{DefaultSpec()}
	}
	d := &Driver{
		devices: specs,
		allocs:  make(map[device.DevicePtr][]float32),
		next:    1,
	}
	d.blas = &Blas{d: d, handles: make(map[device.Handle]device.Stream), next: 1}
	d.sparse = &Sparse{d: d, handles: make(map[device.Handle]device.Stream), next: 1}
	return d
}

// Blas returns the simulated BLAS library bound to this driver.
func (d *Driver) Blas() *Blas { return d.blas }

// Sparse returns the simulated sparse library bound to this driver.
func (d *Driver) Sparse() *Sparse { return d.sparse }

func (d *Driver) DeviceCount() (int, error) {
	return len(d.devices), nil
}

func (d *Driver) checkOrdinal(ordinal int) error {
	if ordinal < 0 || ordinal >= len(d.devices) {
		return fmt.Errorf("invalid device ordinal %d (have %d devices)", ordinal, len(d.devices))
	}
	return nil
}

func (d *Driver) SetDevice(ordinal int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SetDeviceErr != nil {
		return d.SetDeviceErr
	}
	if err := d.checkOrdinal(ordinal); err != nil {
		return err
	}
	d.current = ordinal
	return nil
}

func (d *Driver) DeviceAttribute(ordinal int, attr device.Attr) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AttributeErr != nil {
		return 0, d.AttributeErr
	}
	if err := d.checkOrdinal(ordinal); err != nil {
		return 0, err
	}
	spec := d.devices[ordinal]
	switch attr {
	case device.AttrComputeCapabilityMajor:
		return spec.Capability.Major, nil
	case device.AttrComputeCapabilityMinor:
		return spec.Capability.Minor, nil
	case device.AttrMultiprocessorCount:
		return spec.Multiprocessors, nil
	default:
		return 0, fmt.Errorf("unknown attribute %v", attr)
	}
}

func (d *Driver) DeviceName(ordinal int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOrdinal(ordinal); err != nil {
		return "", err
	}
	return d.devices[ordinal].Name, nil
}

func (d *Driver) TotalMemory(ordinal int) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOrdinal(ordinal); err != nil {
		return 0, err
	}
	return d.devices[ordinal].TotalMemory, nil
}

// StreamSynchronize is a no-op wait: simulated work executes synchronously at
// enqueue time, so the stream is always drained.
func (d *Driver) StreamSynchronize(device.Stream) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.SyncErr
}

func (d *Driver) MallocFloat32(n int) (device.DevicePtr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.MallocErr != nil {
		return 0, d.MallocErr
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid allocation size %d", n)
	}
	ptr := device.DevicePtr(d.next)
	d.next++
	d.allocs[ptr] = make([]float32, n)
	return ptr, nil
}

func (d *Driver) CopyToDevice(dst device.DevicePtr, src []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.allocs[dst]
	if !ok {
		return fmt.Errorf("copy to unknown device pointer %#x", uint64(dst))
	}
	if len(src) > len(buf) {
		return fmt.Errorf("copy of %d values exceeds allocation of %d", len(src), len(buf))
	}
	copy(buf, src)
	return nil
}

func (d *Driver) CopyToHost(dst []float32, src device.DevicePtr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.allocs[src]
	if !ok {
		return fmt.Errorf("copy from unknown device pointer %#x", uint64(src))
	}
	if len(dst) > len(buf) {
		return fmt.Errorf("copy of %d values exceeds allocation of %d", len(dst), len(buf))
	}
	copy(dst, buf)
	return nil
}

func (d *Driver) Free(ptr device.DevicePtr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.allocs[ptr]; !ok {
		return fmt.Errorf("free of unknown device pointer %#x", uint64(ptr))
	}
	delete(d.allocs, ptr)
	return nil
}

// LiveAllocations reports how many device allocations are outstanding.
func (d *Driver) LiveAllocations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.allocs)
}

// slice returns the backing store of a device allocation. Callers hold no
// driver lock while using it; simulated kernels run on one goroutine at a
// time per handle.
func (d *Driver) slice(ptr device.DevicePtr) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.allocs[ptr]
	if !ok {
		return nil, fmt.Errorf("unknown device pointer %#x", uint64(ptr))
	}
	return buf, nil
}

// Blas simulates the dense BLAS vendor library.
type Blas struct {
	d  *Driver
	mu sync.Mutex

	next     uint64
	handles  map[device.Handle]device.Stream
	creates  int
	destroys int

	CreateErr error
}

func (b *Blas) Name() string { return "blas" }

func (b *Blas) Create() (device.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CreateErr != nil {
		return 0, b.CreateErr
	}
	h := device.Handle(b.next)
	b.next++
	b.handles[h] = device.DefaultStream
	b.creates++
	return h, nil
}

func (b *Blas) SetStream(h device.Handle, stream device.Stream) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handles[h]; !ok {
		return fmt.Errorf("unknown blas handle %#x", uint64(h))
	}
	b.handles[h] = stream
	return nil
}

func (b *Blas) Destroy(h device.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handles[h]; !ok {
		return fmt.Errorf("destroy of unknown blas handle %#x", uint64(h))
	}
	delete(b.handles, h)
	b.destroys++
	return nil
}

// Creates reports how many contexts this library has handed out.
func (b *Blas) Creates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates
}

// Destroys reports how many contexts have been destroyed.
func (b *Blas) Destroys() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroys
}

// Sgemm computes C = alpha*A*B + beta*C on row-major device buffers, with
// alpha and beta read from device-resident scalars the way the vendor
// library's device-pointer mode does. A is m×k, B is k×n, C is m×n.
func (b *Blas) Sgemm(h device.Handle, m, n, k int, alpha, a, bm, beta, cm device.DevicePtr) error {
	b.mu.Lock()
	_, ok := b.handles[h]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("sgemm on unknown blas handle %#x", uint64(h))
	}

	alphaBuf, err := b.d.slice(alpha)
	if err != nil {
		return err
	}
	betaBuf, err := b.d.slice(beta)
	if err != nil {
		return err
	}
	aBuf, err := b.d.slice(a)
	if err != nil {
		return err
	}
	bBuf, err := b.d.slice(bm)
	if err != nil {
		return err
	}
	cBuf, err := b.d.slice(cm)
	if err != nil {
		return err
	}
	if len(aBuf) < m*k || len(bBuf) < k*n || len(cBuf) < m*n {
		return fmt.Errorf("sgemm buffer too small for %dx%dx%d", m, n, k)
	}

	blasimpl.Implementation{}.Sgemm(blas.NoTrans, blas.NoTrans,
		m, n, k,
		alphaBuf[0], aBuf, k,
		bBuf, n,
		betaBuf[0], cBuf, n)
	return nil
}

// Sparse simulates the sparse vendor library. It hands out contexts with the
// same protocol as Blas; no sparse kernels are simulated yet.
type Sparse struct {
	d  *Driver
	mu sync.Mutex

	next     uint64
	handles  map[device.Handle]device.Stream
	creates  int
	destroys int

	CreateErr error
}

func (s *Sparse) Name() string { return "sparse" }

func (s *Sparse) Create() (device.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return 0, s.CreateErr
	}
	h := device.Handle(s.next)
	s.next++
	s.handles[h] = device.DefaultStream
	s.creates++
	return h, nil
}

func (s *Sparse) SetStream(h device.Handle, stream device.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[h]; !ok {
		return fmt.Errorf("unknown sparse handle %#x", uint64(h))
	}
	s.handles[h] = stream
	return nil
}

func (s *Sparse) Destroy(h device.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[h]; !ok {
		return fmt.Errorf("destroy of unknown sparse handle %#x", uint64(h))
	}
	delete(s.handles, h)
	s.destroys++
	return nil
}

// Creates reports how many contexts this library has handed out.
func (s *Sparse) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// Destroys reports how many contexts have been destroyed.
func (s *Sparse) Destroys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroys
}
