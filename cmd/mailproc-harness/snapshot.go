package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/infodancer/mailproc-harness/internal/config"
	"github.com/infodancer/mailproc-harness/internal/maildir"
)

// runSnapshot prints the current mailbox as the expected block of a
// fixture.
func runSnapshot() int {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}

	if err := writeSnapshot(os.Stdout, cfg.MailboxBase); err != nil {
		fmt.Fprintf(os.Stderr, "error reading mailbox: %v\n", err)
		return 1
	}
	return 0
}

func writeSnapshot(w io.Writer, base string) error {
	snap, err := maildir.ReadSnapshot(base)
	if err != nil {
		return err
	}

	doc := map[string]map[string]map[string]string{
		"expected": snap.Normalize(),
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}
