package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-httpx/internal/slab"
)

func TestHeaderTemplate_PatchFieldsAtRegisteredOffsets(t *testing.T) {
	s, err := slab.New(2)
	require.NoError(t, err)
	defer s.Close()

	base := bytes.Repeat([]byte{' '}, 128)
	copy(base, []byte("HTTP/1.1 200 OK\r\nDate: "))
	dateOffset := len("HTTP/1.1 200 OK\r\nDate: ")
	copy(base[dateOffset+29:], []byte("\r\nContent-Length: "))
	clOffset := dateOffset + 29 + len("\r\nContent-Length: ")

	tmpl, err := NewHeaderTemplate(s, 0, base, map[string]Field{
		"date":           {Offset: dateOffset, Width: 29},
		"content-length": {Offset: clOffset, Width: 10},
	})
	require.NoError(t, err)

	require.NoError(t, tmpl.PatchDate(s, []byte("Mon, 01 Jan 2024 00:00:00 GMT")))
	require.NoError(t, tmpl.PatchContentLength(s, 4096))

	patched := s.SlotPtr(0)
	require.Contains(t, string(patched[dateOffset:dateOffset+29]), "Mon, 01 Jan 2024")
	require.Contains(t, string(patched[clOffset:clOffset+10]), "4096")
}

func TestHeaderTemplate_RejectsOversizedHeaders(t *testing.T) {
	s, err := slab.New(1)
	require.NoError(t, err)
	defer s.Close()

	oversized := bytes.Repeat([]byte{'a'}, 200)
	_, err = NewHeaderTemplate(s, 0, oversized, nil)
	require.Error(t, err)
}

func TestHeaderTemplate_UnknownFieldErrors(t *testing.T) {
	s, err := slab.New(1)
	require.NoError(t, err)
	defer s.Close()

	tmpl, err := NewHeaderTemplate(s, 0, []byte("ok"), nil)
	require.NoError(t, err)
	require.Error(t, tmpl.PatchField(s, "nope", []byte("x")))
}
