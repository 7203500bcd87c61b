package maildir

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"seen and replied", "foo:2,RS", "RS"},
		{"no marker", "foo", ""},
		{"empty flags", "1700000000.M1P2.host:2,", ""},
		{"unsorted kept verbatim", "foo:2,SR", "SR"},
		{"duplicates kept verbatim", "foo:2,SS", "SS"},
		{"last marker wins", "a:2,S:2,T", "T"},
		{"experimental info ignored", "foo:1,xyz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFlags(tt.filename))
		})
	}
}

func TestIdentify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1700000000.M1P2.host:2,FS")
	content := "From: a@example.com\r\nMessage-ID:   <id-1@example.com>  \r\nSubject: hi\r\n\r\nbody\r\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	msg, err := Identify(path)
	require.NoError(t, err)
	assert.Equal(t, "<id-1@example.com>", msg.ID)
	assert.Equal(t, "FS", msg.Flags)
}

func TestIdentifyToleratesNonUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msg")
	content := []byte("Subject: caf\xe9 \xff\xfe\r\nMessage-ID: <latin1@example.com>\r\n\r\n\x80\x81 broken body\xc3\r\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	msg, err := Identify(path)
	require.NoError(t, err)
	assert.Equal(t, "<latin1@example.com>", msg.ID)
	assert.Equal(t, "", msg.Flags)
}

func TestIdentifyMissingMessageID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msg")
	require.NoError(t, os.WriteFile(path, []byte("Subject: none\r\n\r\nbody\r\n"), 0o644))

	_, err := Identify(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMessageID), "expected ErrNoMessageID, got %v", err)
}

func TestIdentifyMissingFile(t *testing.T) {
	_, err := Identify(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestIdentifyLenientHeader(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "garbage line after id",
			content: "Message-ID: <g1@example.com>\r\nthis is not a header\r\nX-Later: ignored\r\n\r\nbody\r\n",
			want:    "<g1@example.com>",
		},
		{
			name:    "leading mbox separator",
			content: "From sender@example.com Sat Jan  1 00:00:00 2000\nFrom: sender@example.com\nMessage-ID: <g2@example.com>\n\nbody\n",
			want:    "<g2@example.com>",
		},
		{
			name:    "folded id",
			content: "Subject: hi\r\nMessage-ID:\r\n <g3@example.com>\r\n\r\n",
			want:    "<g3@example.com>",
		},
		{
			name:    "no trailing blank line",
			content: "Message-ID: <g4@example.com>",
			want:    "<g4@example.com>",
		},
		{
			name:    "key with space is not a field",
			content: "Message-ID: <g5@example.com>\r\nBad Key: value\r\n\r\n",
			want:    "<g5@example.com>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "msg:2,S")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			msg, err := Identify(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.ID)
			assert.Equal(t, "S", msg.Flags)
		})
	}
}

func TestIdentifyIDAfterGarbageIsLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg")
	require.NoError(t, os.WriteFile(path, []byte("Subject: x\r\nnot a header\r\nMessage-ID: <late@example.com>\r\n\r\n"), 0o644))

	_, err := Identify(path)
	assert.ErrorIs(t, err, ErrNoMessageID)
}
