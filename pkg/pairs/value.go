package pairs

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"mercator-hq/callisto/pkg/dict"
)

// ErrInvalidValue is returned when a value does not conform to its
// attribute's type.
var ErrInvalidValue = errors.New("invalid attribute value")

// UintVal returns an integer value.
func UintVal(v uint64) cty.Value {
	return cty.NumberUIntVal(v)
}

// StringVal returns a string value.
func StringVal(s string) cty.Value {
	return cty.StringVal(s)
}

// OctetsVal returns an octets value.
func OctetsVal(b []byte) cty.Value {
	return cty.StringVal("0x" + hex.EncodeToString(b))
}

// IPVal returns an ipaddr value.
func IPVal(addr netip.Addr) cty.Value {
	return cty.StringVal(addr.String())
}

// DateVal returns a date value (seconds since the epoch).
func DateVal(t time.Time) cty.Value {
	return cty.NumberIntVal(t.Unix())
}

// Conform converts v to the representation used for attr, failing if the
// value cannot be represented.
func Conform(attr *dict.Attribute, v cty.Value) (cty.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("%w: %s: value is null", ErrInvalidValue, attr.Name)
	}

	switch {
	case attr.Type.IsUnsigned() || attr.Type == dict.TypeDate:
		if v.Type() == cty.String {
			// Enum names are accepted wherever a number is.
			if n, ok := attr.Value(v.AsString()); ok {
				return UintVal(n), nil
			}
		}
		nv, err := convert.Convert(v, cty.Number)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%w: %s: %v", ErrInvalidValue, attr.Name, err)
		}
		var n uint64
		if err := gocty.FromCtyValue(nv, &n); err != nil {
			return cty.NilVal, fmt.Errorf("%w: %s: %v", ErrInvalidValue, attr.Name, err)
		}
		if n > attr.Type.Max() {
			return cty.NilVal, fmt.Errorf("%w: %s: %d overflows %s", ErrInvalidValue, attr.Name, n, attr.Type)
		}
		return UintVal(n), nil

	case attr.Type == dict.TypeIPAddr:
		s, err := asString(attr, v)
		if err != nil {
			return cty.NilVal, err
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%w: %s: %v", ErrInvalidValue, attr.Name, err)
		}
		return IPVal(addr), nil

	case attr.Type == dict.TypeOctets:
		s, err := asString(attr, v)
		if err != nil {
			return cty.NilVal, err
		}
		if isHex(s) {
			return cty.StringVal(strings.ToLower(s)), nil
		}
		return OctetsVal([]byte(s)), nil

	default:
		s, err := asString(attr, v)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(s), nil
	}
}

// ParseValue parses the text form of a value for attr.
func ParseValue(attr *dict.Attribute, text string) (cty.Value, error) {
	if attr.Type == dict.TypeDate {
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return DateVal(ts), nil
		}
	}
	if attr.Type.IsUnsigned() || attr.Type == dict.TypeDate {
		if n, ok := attr.Value(text); ok {
			return UintVal(n), nil
		}
		n, err := strconv.ParseUint(strings.TrimSpace(text), 0, 64)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%w: %s: %q is not a valid %s", ErrInvalidValue, attr.Name, text, attr.Type)
		}
		return Conform(attr, UintVal(n))
	}
	return Conform(attr, cty.StringVal(text))
}

// Bytes returns the network representation of v for attr: big-endian
// integers of the attribute's width, 4 or 16 address bytes, raw octets or
// the string bytes.
func Bytes(attr *dict.Attribute, v cty.Value) ([]byte, error) {
	switch {
	case attr.Type.IsUnsigned() || attr.Type == dict.TypeDate:
		var n uint64
		if err := gocty.FromCtyValue(v, &n); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, attr.Name, err)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return buf[8-attr.Type.Bits()/8:], nil

	case attr.Type == dict.TypeIPAddr:
		addr, err := netip.ParseAddr(v.AsString())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, attr.Name, err)
		}
		return addr.AsSlice(), nil

	case attr.Type == dict.TypeOctets:
		s := v.AsString()
		if isHex(s) {
			return hex.DecodeString(s[2:])
		}
		return []byte(s), nil

	default:
		return []byte(v.AsString()), nil
	}
}

// Uint returns v as an unsigned integer.
func Uint(v cty.Value) (uint64, error) {
	var n uint64
	if err := gocty.FromCtyValue(v, &n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return n, nil
}

// Format returns the printable form of v. Integer values with a registered
// enum name print as that name.
func Format(attr *dict.Attribute, v cty.Value) string {
	if v.Type() == cty.Number {
		n, err := Uint(v)
		if err != nil {
			return v.AsBigFloat().String()
		}
		if name, ok := attr.ValueName(n); ok {
			return name
		}
		return strconv.FormatUint(n, 10)
	}
	return v.AsString()
}

func asString(attr *dict.Attribute, v cty.Value) (string, error) {
	sv, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, attr.Name, err)
	}
	return sv.AsString(), nil
}

func isHex(s string) bool {
	if len(s) < 2 || (s[:2] != "0x" && s[:2] != "0X") || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}
