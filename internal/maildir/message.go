// Package maildir reads maildir trees into comparable snapshots.
//
// A snapshot maps each folder (relative to the mailbox base, "." for the base
// itself) to the messages it holds, keyed by Message-ID with the raw maildir
// flag suffix as the value. It has the same shape as the "expected" map of a
// test fixture so the two can be compared directly.
package maildir

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message/textproto"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// flagMarker separates the unique part of a maildir filename from its flags.
const flagMarker = ":2,"

// ErrNoMessageID is returned when a stored message carries no Message-ID header.
var ErrNoMessageID = errors.New("message has no Message-ID header")

// Message identifies a single stored message.
type Message struct {
	ID    string
	Flags string
}

// ParseFlags returns the raw flag characters encoded in a maildir filename:
// everything after the last ":2," marker, or "" when there is none.
func ParseFlags(filename string) string {
	if idx := strings.LastIndex(filename, flagMarker); idx != -1 {
		return filename[idx+len(flagMarker):]
	}
	return ""
}

// Identify reads the header block of the message stored at path and returns
// its Message-ID together with the flags encoded in the filename.
//
// Bytes are decoded as ISO-8859-1, which maps every byte to a rune, so
// non-UTF-8 headers never fail to decode. The header block ends at the first
// line that is not a header field; the body is not read.
func Identify(path string) (Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return Message{}, fmt.Errorf("opening message: %w", err)
	}
	defer f.Close() //nolint:errcheck

	r := bufio.NewReader(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	block, err := headerBlock(r)
	if err != nil {
		return Message{}, fmt.Errorf("reading header of %s: %w", path, err)
	}
	hdr, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(block)))
	if err != nil {
		return Message{}, fmt.Errorf("reading header of %s: %w", path, err)
	}

	id := strings.TrimSpace(hdr.Get("Message-Id"))
	if id == "" {
		return Message{}, fmt.Errorf("%s: %w", path, ErrNoMessageID)
	}

	return Message{
		ID:    id,
		Flags: ParseFlags(filepath.Base(path)),
	}, nil
}

// headerBlock collects the leading header fields of a message, terminated by
// an empty line. An mbox "From " separator on the first line is skipped, and
// the block stops early at the first line that is neither a field nor a
// continuation, the way lenient mail parsers treat the rest as body.
func headerBlock(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	first := true
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case first && strings.HasPrefix(line, "From "):
		case line == "":
			err = io.EOF
		case line[0] == ' ' || line[0] == '\t':
			if buf.Len() > 0 {
				buf.WriteString(line)
				buf.WriteString("\r\n")
			}
		case isField(line):
			buf.WriteString(line)
			buf.WriteString("\r\n")
		default:
			err = io.EOF
		}
		first = false

		if err == io.EOF {
			break
		}
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

// isField reports whether line starts with a field name: printable ASCII
// other than ':' followed by a colon.
func isField(line string) bool {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return false
	}
	for i := 0; i < idx; i++ {
		if c := line[i]; c < '!' || c > '~' {
			return false
		}
	}
	return true
}
