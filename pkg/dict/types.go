package dict

import (
	"fmt"
	"strings"
)

// Type is the data type of an attribute.
type Type string

const (
	TypeUint8  Type = "uint8"
	TypeUint16 Type = "uint16"
	TypeUint32 Type = "uint32"
	TypeUint64 Type = "uint64"
	TypeString Type = "string"
	TypeOctets Type = "octets"
	TypeIPAddr Type = "ipaddr"
	TypeDate   Type = "date"
)

var validTypes = []Type{
	TypeUint8, TypeUint16, TypeUint32, TypeUint64,
	TypeString, TypeOctets, TypeIPAddr, TypeDate,
}

// ParseType parses a type name as it appears in a dictionary file.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range validTypes {
		if v == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// IsUnsigned reports whether values of this type are unsigned integers.
// Dates are stored as integers but are not treated as such for key selection.
func (t Type) IsUnsigned() bool {
	switch t {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return true
	}
	return false
}

// Bits returns the width of an integer type, or 0 for non integer types.
func (t Type) Bits() int {
	switch t {
	case TypeUint8:
		return 8
	case TypeUint16:
		return 16
	case TypeUint32, TypeDate:
		return 32
	case TypeUint64:
		return 64
	}
	return 0
}

// Max returns the largest value representable by an integer type.
func (t Type) Max() uint64 {
	bits := t.Bits()
	if bits == 0 {
		return 0
	}
	if bits == 64 {
		return ^uint64(0)
	}
	return 1<<uint(bits) - 1
}

func (t Type) String() string {
	return string(t)
}
