package device

// Flag names an execution-mode setting consulted by numeric kernels when
// picking code paths. The set is closed; behavior per device kind comes from
// the effect table below rather than per-flag method bodies.
type Flag int

const (
	// FlagQuantized enables int8-style quantized low-precision execution.
	FlagQuantized Flag = iota
	// FlagPrecomputedScale enables use of precomputed quantization scales.
	FlagPrecomputedScale
	// FlagTensorCoreGemm routes GEMM through tensor cores. Requires compute
	// capability 7.x or newer.
	FlagTensorCoreGemm
	// FlagFused enables fused-kernel dispatch.
	FlagFused
	// FlagMatrixDump enables dumping of quantization multiplier matrices.
	FlagMatrixDump

	// The remaining flags are inherited from the CPU-oriented backend and
	// have no effect on GPU devices. They stay settable so configuration
	// code can toggle them generically; each logs a one-time notice instead.
	FlagLegacyReducedPrecision
	FlagShiftedArithmetic
	FlagShiftedArithmeticAll
	FlagLegacyBatchedGemm

	flagCount
)

func (f Flag) String() string {
	switch f {
	case FlagQuantized:
		return "quantized"
	case FlagPrecomputedScale:
		return "precomputedScale"
	case FlagTensorCoreGemm:
		return "tensorCoreGemm"
	case FlagFused:
		return "fused"
	case FlagMatrixDump:
		return "matrixDump"
	case FlagLegacyReducedPrecision:
		return "legacyReducedPrecision"
	case FlagShiftedArithmetic:
		return "shiftedArithmetic"
	case FlagShiftedArithmeticAll:
		return "shiftedArithmeticAll"
	case FlagLegacyBatchedGemm:
		return "legacyBatchedGemm"
	default:
		return "unknown"
	}
}

// Flags returns every flag in the registry, in declaration order.
func Flags() []Flag {
	flags := make([]Flag, flagCount)
	for i := range flags {
		flags[i] = Flag(i)
	}
	return flags
}

type flagEffect uint8

const (
	// effectStored flags store the requested value verbatim.
	effectStored flagEffect = iota
	// effectTensorCoreGated flags store the value only after a capability
	// check when enabling.
	effectTensorCoreGated
	// effectInert flags never change state; the setter emits a one-time
	// notice and the getter reads a fixed false.
	effectInert
)

// tensorCoreMinMajor is the minimum compute-capability major version with
// tensor-core units.
const tensorCoreMinMajor = 7

// Kinds absent from this table cannot construct an execution context.
var flagEffects = map[Kind][flagCount]flagEffect{
	KindGPU: {
		FlagQuantized:              effectStored,
		FlagPrecomputedScale:       effectStored,
		FlagTensorCoreGemm:         effectTensorCoreGated,
		FlagFused:                  effectStored,
		FlagMatrixDump:             effectStored,
		FlagLegacyReducedPrecision: effectInert,
		FlagShiftedArithmetic:      effectInert,
		FlagShiftedArithmeticAll:   effectInert,
		FlagLegacyBatchedGemm:      effectInert,
	},
}
