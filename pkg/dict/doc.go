// Package dict provides the attribute dictionary used by policies and requests.
//
// A dictionary maps attribute names to their data type and, for integer
// attributes, to a set of named values (for example Acct-Status-Type = Start).
// Dictionaries are loaded once from YAML and are read-only afterwards, so a
// single *Dictionary is safely shared by the compiler and every request.
//
// # File format
//
//	attributes:
//	  - name: Acct-Status-Type
//	    type: uint32
//	    values:
//	      Start: 1
//	      Stop: 2
//	  - name: User-Name
//	    type: string
//
// Attributes that are referenced but not defined are treated as opaque octets
// (see Dictionary.LookupOrUnknown).
package dict
