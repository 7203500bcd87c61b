package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	// Dispatch to a subcommand before flag parsing so the chosen function
	// owns its flags. Strip the subcommand from os.Args.
	var subcommand string
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		subcommand = os.Args[1]
		os.Args = append(os.Args[:1], os.Args[2:]...)
	}

	switch subcommand {
	case "", "run":
		os.Exit(runSuite())
	case "snapshot":
		os.Exit(runSnapshot())
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\nusage: mailproc-harness [run|snapshot] [flags]\n", subcommand)
		os.Exit(1)
	}
}
