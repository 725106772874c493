package ir

// IntrinsicID identifies a builtin procedure.
type IntrinsicID uint8

const (
	IntrinsicInvalid IntrinsicID = iota
	IntrinsicAbs
	IntrinsicSign
	IntrinsicMax
	IntrinsicMin
	IntrinsicMod
)

var intrinsicNames = [...]string{
	IntrinsicInvalid: "invalid",
	IntrinsicAbs:     "abs",
	IntrinsicSign:    "sign",
	IntrinsicMax:     "max",
	IntrinsicMin:     "min",
	IntrinsicMod:     "mod",
}

func (id IntrinsicID) String() string {
	if int(id) < len(intrinsicNames) {
		return intrinsicNames[id]
	}
	return "invalid"
}
