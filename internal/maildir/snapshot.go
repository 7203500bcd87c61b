package maildir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoMailbox is returned when the mailbox base does not exist.
var ErrNoMailbox = errors.New("mailbox base does not exist")

// Subdirectories of a maildir folder. Only cur and new hold delivered messages.
const (
	SubdirCur = "cur"
	SubdirNew = "new"
	SubdirTmp = "tmp"
)

// Snapshot maps a folder path relative to the mailbox base to the messages in
// it, keyed by Message-ID with the raw flag string as value.
type Snapshot map[string]map[string]string

// Normalize returns a copy of s without folders that hold no messages. A nil
// or empty snapshot normalizes to an empty, non-nil map.
func (s Snapshot) Normalize() Snapshot {
	out := make(Snapshot, len(s))
	for folder, msgs := range s {
		if len(msgs) == 0 {
			continue
		}
		cp := make(map[string]string, len(msgs))
		for id, flags := range msgs {
			cp[id] = flags
		}
		out[folder] = cp
	}
	return out
}

// Equal reports whether s and other hold the same messages with the same
// flags, ignoring empty folders on either side.
func (s Snapshot) Equal(other Snapshot) bool {
	a, b := s.Normalize(), other.Normalize()
	if len(a) != len(b) {
		return false
	}
	for folder, msgs := range a {
		otherMsgs, ok := b[folder]
		if !ok || len(msgs) != len(otherMsgs) {
			return false
		}
		for id, flags := range msgs {
			if otherFlags, ok := otherMsgs[id]; !ok || otherFlags != flags {
				return false
			}
		}
	}
	return true
}

// ReadSnapshot walks the maildir tree rooted at base and records every message
// found in a cur or new directory. Folder levels without messages are left
// out. A missing base is reported as ErrNoMailbox.
func ReadSnapshot(base string) (Snapshot, error) {
	base = filepath.Clean(base)
	info, err := os.Stat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", base, ErrNoMailbox)
		}
		return nil, fmt.Errorf("stat mailbox base: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mailbox base %s is not a directory", base)
	}

	snap := make(Snapshot)
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A folder removed between listing and reading holds nothing.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		msgDir := filepath.Dir(path)
		switch filepath.Base(msgDir) {
		case SubdirCur, SubdirNew:
		default:
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		folder, err := filepath.Rel(base, filepath.Dir(msgDir))
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		folder = filepath.ToSlash(folder)

		msg, err := Identify(path)
		if err != nil {
			return err
		}
		if snap[folder] == nil {
			snap[folder] = make(map[string]string)
		}
		snap[folder][msg.ID] = msg.Flags
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading mailbox %s: %w", base, err)
	}

	return snap, nil
}
