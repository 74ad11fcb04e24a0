// Package pairs holds the per-request attribute lists.
//
// Every request carries three lists (request, reply and control). A list is
// an ordered multiset of attribute/value pairs; values are go-cty values so
// that policy expressions can be evaluated against them directly. Integer and
// date attributes hold cty numbers, everything else holds cty strings (octets
// are stored hex encoded with a 0x prefix, ipaddr in canonical text form).
package pairs
