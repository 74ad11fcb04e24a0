package dict

import "sync"

var (
	defaultOnce sync.Once
	defaultDict *Dictionary
)

// Default returns the built-in dictionary. It covers the accounting
// attributes the bundled modules use plus a set of scratch attributes
// of every type.
func Default() *Dictionary {
	defaultOnce.Do(func() {
		d, err := New(defaultAttributes()...)
		if err != nil {
			panic("dict: invalid built-in dictionary: " + err.Error())
		}
		defaultDict = d
	})
	return defaultDict
}

func defaultAttributes() []*Attribute {
	return []*Attribute{
		{Name: "User-Name", Type: TypeString},
		{Name: "NAS-IP-Address", Type: TypeIPAddr},
		{Name: "NAS-Port", Type: TypeUint32},
		{Name: "NAS-Identifier", Type: TypeString},
		{Name: "Framed-IP-Address", Type: TypeIPAddr},
		{Name: "Class", Type: TypeOctets},
		{Name: "Called-Station-Id", Type: TypeString},
		{Name: "Calling-Station-Id", Type: TypeString},
		{Name: "Acct-Status-Type", Type: TypeUint32, Values: map[string]uint64{
			"Start":          1,
			"Stop":           2,
			"Interim-Update": 3,
			"Accounting-On":  7,
			"Accounting-Off": 8,
			"Failed":         15,
		}},
		{Name: "Acct-Session-Id", Type: TypeString},
		{Name: "Acct-Session-Time", Type: TypeUint32},
		{Name: "Acct-Input-Octets", Type: TypeUint32},
		{Name: "Acct-Output-Octets", Type: TypeUint32},
		{Name: "Event-Timestamp", Type: TypeDate},
		{Name: "Tmp-Uint8-0", Type: TypeUint8},
		{Name: "Tmp-Uint16-0", Type: TypeUint16},
		{Name: "Tmp-Integer-0", Type: TypeUint32},
		{Name: "Tmp-Integer-1", Type: TypeUint32},
		{Name: "Tmp-Integer64-0", Type: TypeUint64},
		{Name: "Tmp-String-0", Type: TypeString},
		{Name: "Tmp-String-1", Type: TypeString},
		{Name: "Tmp-Octets-0", Type: TypeOctets},
		{Name: "Tmp-IP-Address-0", Type: TypeIPAddr},
		{Name: "Tmp-Date-0", Type: TypeDate},
	}
}
