// Package device manages per-device GPU execution state: the process-wide
// device binding, detected compute capability, lazily created vendor library
// contexts, two device-resident scalar constants used as GEMM scale factors,
// and the execution-mode flags numeric kernels consult when picking code
// paths.
package device

import "fmt"

// Kind identifies the class of accelerator a device belongs to.
type Kind uint8

const (
	KindGPU Kind = iota
	KindCPU
)

func (k Kind) String() string {
	switch k {
	case KindGPU:
		return "gpu"
	case KindCPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// DeviceID identifies a physical accelerator device by kind and ordinal.
// It is immutable after construction.
type DeviceID struct {
	Ordinal int
	Kind    Kind
}

func (d DeviceID) String() string {
	return fmt.Sprintf("%s%d", d.Kind, d.Ordinal)
}

// Capability is the compute-capability version pair of a device. Certain
// execution modes (tensor-core GEMM) are only available above a minimum
// major version.
type Capability struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

func (c Capability) String() string {
	return fmt.Sprintf("%d.%d", c.Major, c.Minor)
}
