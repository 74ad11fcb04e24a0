// Package modules instantiates the leaf modules policies call.
//
// Module types register a Factory from an init function; importing the
// module package for its side effect makes the type available:
//
//	import _ "mercator-hq/callisto/pkg/modules/sessions"
//
// Load then builds one instance per configured name, decoding each
// instance's settings into the type's own configuration struct.
package modules
