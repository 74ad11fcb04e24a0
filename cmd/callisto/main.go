// Callisto runs RADIUS-style request policies through a resumable
// interpreter.
//
// Policies are HCL files of named sections. Each section is a tree of
// groups, load-balance and redundant groups, module calls and fixed
// returns. Requests are scheduled on a worker pool and suspend without
// holding a worker while modules wait on I/O.
//
// Usage:
//
//	# Check a policy for errors
//	callisto check policy.hcl
//
//	# Run the requests in a file through the configured policy
//	callisto run --config callisto.yaml --requests requests.yaml
//
//	# Keep running after the batch, reloading the policy on change or SIGHUP
//	callisto run --requests requests.yaml --wait
//
//	# Show version information
//	callisto version
package main

import (
	"fmt"
	"os"

	"mercator-hq/callisto/pkg/cli"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
