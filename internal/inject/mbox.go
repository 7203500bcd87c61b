package inject

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/emersion/go-mbox"
)

// isMbox reports whether path names an mbox file rather than a single
// message.
func isMbox(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mbox")
}

// splitMbox returns the messages of an mbox file in order.
func splitMbox(data []byte) ([][]byte, error) {
	var msgs [][]byte
	r := mbox.NewReader(bytes.NewReader(data))
	for {
		mr, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading mbox message %d: %w", len(msgs)+1, err)
		}
		msg, err := io.ReadAll(mr)
		if err != nil {
			return nil, fmt.Errorf("reading mbox message %d: %w", len(msgs)+1, err)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil, errors.New("mbox holds no messages")
	}
	return msgs, nil
}
