package expr

// DType enumerates the value types an expression can carry. The passes
// do all integer reasoning in int64 regardless of the declared width;
// the width matters for casts, printing and evaluation.
type DType uint8

const (
	Unknown DType = iota
	Bool
	Int32
	Int64
	Float32
	Float64
)

func (t DType) String() string {
	switch t {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return "unknown"
}

// IsInt reports whether t is an integer type.
func (t DType) IsInt() bool { return t == Int32 || t == Int64 }

// IsFloat reports whether t is a floating point type.
func (t DType) IsFloat() bool { return t == Float32 || t == Float64 }

// Promote returns the type two operands of a binary operation unify to:
// bool widens to the numeric side, integers widen to floats, narrower
// integers widen to wider ones. The constant order of the DType values
// encodes exactly this ranking.
func Promote(a, b DType) DType {
	if a > b {
		return a
	}
	return b
}
