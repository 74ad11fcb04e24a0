package pairs

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"github.com/zclconf/go-cty/cty"

	"mercator-hq/callisto/pkg/dict"
)

func attr(t *testing.T, name string) *dict.Attribute {
	t.Helper()
	a, ok := dict.Default().Lookup(name)
	if !ok {
		t.Fatalf("attribute %s missing from default dictionary", name)
	}
	return a
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		attr    string
		text    string
		want    cty.Value
		wantErr bool
	}{
		{name: "uint8", attr: "Tmp-Uint8-0", text: "7", want: cty.NumberUIntVal(7)},
		{name: "uint8 overflow", attr: "Tmp-Uint8-0", text: "256", wantErr: true},
		{name: "hex integer", attr: "Tmp-Integer-0", text: "0x10", want: cty.NumberUIntVal(16)},
		{name: "enum name", attr: "Acct-Status-Type", text: "Interim-Update", want: cty.NumberUIntVal(3)},
		{name: "bad integer", attr: "Tmp-Integer-0", text: "abc", wantErr: true},
		{name: "string", attr: "User-Name", text: "bob", want: cty.StringVal("bob")},
		{name: "ipaddr", attr: "NAS-IP-Address", text: "192.0.2.1", want: cty.StringVal("192.0.2.1")},
		{name: "bad ipaddr", attr: "NAS-IP-Address", text: "192.0.2", wantErr: true},
		{name: "octets raw", attr: "Class", text: "ab", want: cty.StringVal("0x6162")},
		{name: "octets hex", attr: "Class", text: "0xABCD", want: cty.StringVal("0xabcd")},
		{name: "date rfc3339", attr: "Event-Timestamp", text: "1970-01-01T00:01:00Z", want: cty.NumberIntVal(60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(attr(t, tt.attr), tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidValue) {
					t.Fatalf("ParseValue() error = %v, want ErrInvalidValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValue() unexpected error: %v", err)
			}
			if !got.RawEquals(tt.want) && !got.Equals(tt.want).True() {
				t.Errorf("ParseValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		name  string
		attr  string
		value cty.Value
		want  []byte
	}{
		{name: "uint8", attr: "Tmp-Uint8-0", value: UintVal(7), want: []byte{7}},
		{name: "uint16", attr: "Tmp-Uint16-0", value: UintVal(0x0102), want: []byte{1, 2}},
		{name: "uint32", attr: "Tmp-Integer-0", value: UintVal(1), want: []byte{0, 0, 0, 1}},
		{name: "ipv4", attr: "NAS-IP-Address", value: IPVal(netip.MustParseAddr("10.0.0.1")), want: []byte{10, 0, 0, 1}},
		{name: "octets", attr: "Class", value: OctetsVal([]byte{0xde, 0xad}), want: []byte{0xde, 0xad}},
		{name: "string", attr: "User-Name", value: StringVal("bob"), want: []byte("bob")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Bytes(attr(t, tt.attr), tt.value)
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestListOperations(t *testing.T) {
	var l List
	user := attr(t, "User-Name")
	status := attr(t, "Acct-Status-Type")

	if err := l.Add(user, StringVal("alice")); err != nil {
		t.Fatal(err)
	}
	if err := l.Add(user, StringVal("bob")); err != nil {
		t.Fatal(err)
	}
	if err := l.Add(status, StringVal("Start")); err != nil {
		t.Fatal(err)
	}

	p, ok := l.Find("user-name")
	if !ok || p.Value.AsString() != "alice" {
		t.Fatalf("Find() = %v, %v; want first instance", p, ok)
	}
	if got := p.String(); got != "User-Name = alice" {
		t.Errorf("String() = %q", got)
	}

	sp, _ := l.Find("Acct-Status-Type")
	if got := sp.String(); got != "Acct-Status-Type = Start" {
		t.Errorf("enum String() = %q", got)
	}

	if err := l.Set(user, StringVal("carol")); err != nil {
		t.Fatal(err)
	}
	p, _ = l.Find("User-Name")
	if p.Value.AsString() != "carol" {
		t.Errorf("Set() did not replace the first instance")
	}

	obj := l.Object()
	if got := obj.GetAttr("User-Name").AsString(); got != "carol" {
		t.Errorf("Object() User-Name = %q", got)
	}

	if n := l.Delete("User-Name"); n != 2 {
		t.Errorf("Delete() = %d, want 2", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
	if err := l.Add(status, StringVal("not-a-status")); err == nil {
		t.Error("Add() should reject values that do not conform")
	}
}

func TestListsVariables(t *testing.T) {
	ls := NewLists()
	if err := ls.Control.Add(attr(t, "Tmp-String-0"), StringVal("x")); err != nil {
		t.Fatal(err)
	}

	vars := ls.Variables()
	if len(vars) != 3 {
		t.Fatalf("Variables() has %d entries, want 3", len(vars))
	}
	if !vars["request"].RawEquals(cty.EmptyObjectVal) {
		t.Error("empty request list should be an empty object")
	}
	if got := vars["control"].GetAttr("Tmp-String-0").AsString(); got != "x" {
		t.Errorf("control.Tmp-String-0 = %q", got)
	}

	if _, ok := ls.Get("session"); ok {
		t.Error("Get() accepted an unknown list")
	}
	if _, ok := ParseListName("reply"); !ok {
		t.Error("ParseListName(reply) failed")
	}
}
