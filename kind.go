package taskruntime

// Kind tags one node of a type descriptor's structural shape.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindChar
	KindBox
	KindVec
	KindStr
	KindRecord
	KindTup
	KindTag
	KindFn
	KindParam
)

var kindNames = [...]string{
	KindNil:    "nil",
	KindBool:   "bool",
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindU64:    "u64",
	KindI8:     "i8",
	KindI16:    "i16",
	KindI32:    "i32",
	KindI64:    "i64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindChar:   "char",
	KindBox:    "box",
	KindVec:    "vec",
	KindStr:    "str",
	KindRecord: "record",
	KindTup:    "tup",
	KindTag:    "tag",
	KindFn:     "fn",
	KindParam:  "param",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether the kind is a fixed-width primitive.
func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindChar
}

// ScalarSize returns the body size in bytes for scalar kinds, 0 otherwise.
func (k Kind) ScalarSize() uint32 {
	switch k {
	case KindBool, KindU8, KindI8:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32, KindChar:
		return 4
	case KindU64, KindI64, KindF64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether the scalar kind compares as a signed integer.
func (k Kind) Signed() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		return true
	default:
		return false
	}
}
