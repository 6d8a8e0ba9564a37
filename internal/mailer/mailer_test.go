package mailer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBodies(t *testing.T) {
	m, err := build(&Message{From: "a@x.com", To: "b@x.com", Subject: "Hi", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Subject: Hi")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "text/plain")
}

func TestBuildAttachmentLimit(t *testing.T) {
	dir := t.TempDir()

	small := filepath.Join(dir, "small.pdf")
	require.NoError(t, os.WriteFile(small, make([]byte, 1024), 0644))
	_, err := build(&Message{From: "a@x.com", To: "b@x.com", Subject: "s", Text: "t", AttachmentPath: small})
	assert.NoError(t, err)

	big := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxAttachmentSize+1), 0644))
	_, err = build(&Message{From: "a@x.com", To: "b@x.com", Subject: "s", Text: "t", AttachmentPath: big})
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	_, err = build(&Message{From: "a@x.com", To: "b@x.com", Subject: "s", Text: "t", AttachmentPath: filepath.Join(dir, "missing.pdf")})
	assert.Error(t, err)
}
