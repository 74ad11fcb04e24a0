// Package expr compiles and evaluates key expressions.
//
// A key expression is a native HCL expression evaluated against the
// request's attribute lists. Three forms are recognised:
//
//	request.Acct-Session-Id                      attribute reference
//	"${request.User-Name}@${request.NAS-Port}"   dynamic expansion
//	exec("/usr/bin/printf", "%s", request.Class) external execution
//
// References are resolved against the dictionary once, when the expression
// is compiled; evaluation only reads the request lists.
package expr
