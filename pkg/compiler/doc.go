// Package compiler turns HCL policy files into interpreter programs.
//
// A policy file is a list of sections, each a sequence of statements:
//
//	section "accounting" {
//	  redundant-load-balance {
//	    key = request.Acct-Session-Id
//
//	    actions {
//	      fail = "continue"
//	    }
//
//	    call "sessions_a" {}
//	    call "sessions_b" {}
//	  }
//	  return {
//	    rcode = "ok"
//	  }
//	}
//
// # Statements
//
//   - group [name]: runs its children in order.
//   - load-balance [key]: runs one child, selected by key or at random.
//   - redundant-load-balance [key]: like load-balance, failing over to the
//     following children.
//   - redundant: fails over through its children starting with the first.
//   - call "<module>": calls a module; method defaults to the section name.
//   - return: produces a fixed result code.
//
// Every group accepts an actions block mapping result codes to "return",
// "continue" or a priority. The load-balance key may be given as a block
// label or as the key attribute.
//
// Errors in one section do not stop the others from compiling; all
// diagnostics are reported together in a *CompileError.
package compiler
