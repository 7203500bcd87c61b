// Package testutil provides test helpers for building maildir trees, fixture
// directories and stand-in executables.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestMessage describes a message written into a maildir by the helpers.
type TestMessage struct {
	Folder    string // relative to the mailbox base; "" or "." for the base
	Subdir    string // "cur", "new" or "tmp"; defaults to "new"
	Filename  string // defaults to a unique name derived from MessageID
	MessageID string // written verbatim as the Message-ID header; omitted if empty
	Subject   string
}

// MessageText returns a minimal RFC 5322 message. The Message-ID header is
// left out when id is empty.
func MessageText(id, subject string) string {
	text := "From: sender@example.com\r\n" +
		"To: root@localhost\r\n" +
		"Subject: " + subject + "\r\n"
	if id != "" {
		text += "Message-ID: " + id + "\r\n"
	}
	return text + "\r\nbody\r\n"
}

// SetupMaildir creates a mailbox base in a temporary directory with the
// cur/new/tmp structure for the base and every listed folder:
//
//	<base>/
//	├── cur/ new/ tmp/
//	└── <folder>/
//	    ├── cur/
//	    ├── new/
//	    └── tmp/
//
// Returns the base path.
func SetupMaildir(t *testing.T, folders ...string) string {
	t.Helper()

	base := filepath.Join(t.TempDir(), "Maildir")
	for _, folder := range append([]string{"."}, folders...) {
		for _, subdir := range []string{"cur", "new", "tmp"} {
			if err := os.MkdirAll(filepath.Join(base, folder, subdir), 0o755); err != nil {
				t.Fatalf("failed to create maildir folder %s/%s: %v", folder, subdir, err)
			}
		}
	}
	return base
}

// WriteMessages stores each message under base and returns their paths.
func WriteMessages(t *testing.T, base string, msgs ...TestMessage) []string {
	t.Helper()

	paths := make([]string, 0, len(msgs))
	for i, m := range msgs {
		subdir := m.Subdir
		if subdir == "" {
			subdir = "new"
		}
		name := m.Filename
		if name == "" {
			name = fmt.Sprintf("1700000000.M%dP1.testhost", i)
		}
		dir := filepath.Join(base, m.Folder, subdir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(MessageText(m.MessageID, m.Subject)), 0o644); err != nil {
			t.Fatalf("failed to write message %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}
