// Package codec implements fixed-width header-template slots with
// hot-patchable fields, recording exact byte offsets at registration time
// instead of scanning for them on every patch.
package codec

import (
	"fmt"
	"strconv"

	"github.com/behrlich/go-httpx/internal/constants"
	"github.com/behrlich/go-httpx/internal/slab"
)

// Field names an offset range within a HeaderTemplate's 128-byte slot that
// may be hot-patched.
type Field struct {
	Offset int
	Width  int
}

// HeaderTemplate is a 128-byte header block stored in a slab slot, with
// named fields registered at construction time so patches never need to
// re-scan the template text.
type HeaderTemplate struct {
	SlabHandle uint32
	fields     map[string]Field
}

// NewHeaderTemplate copies baseHeaders into slab slot handle (zero-padded
// to the 128-byte template size) and records fields at the exact offsets
// given by the caller, making registration responsible for knowing its
// own layout rather than scanning for markers at runtime.
func NewHeaderTemplate(s *slab.Slab, handle uint32, baseHeaders []byte, fields map[string]Field) (*HeaderTemplate, error) {
	if len(baseHeaders) > constants.HeaderTemplateSize {
		return nil, fmt.Errorf("codec: base headers exceed %d bytes", constants.HeaderTemplateSize)
	}
	for name, f := range fields {
		if f.Offset < 0 || f.Offset+f.Width > constants.HeaderTemplateSize {
			return nil, fmt.Errorf("codec: field %q offset/width out of bounds", name)
		}
	}

	ptr := s.SlotPtr(int(handle))
	for i := 0; i < constants.HeaderTemplateSize; i++ {
		ptr[i] = 0
	}
	copy(ptr[:constants.HeaderTemplateSize], baseHeaders)

	owned := make(map[string]Field, len(fields))
	for k, v := range fields {
		owned[k] = v
	}
	return &HeaderTemplate{SlabHandle: handle, fields: owned}, nil
}

// PatchField hot-patches a named field in place, padding the remainder of
// the field's width with spaces. An unknown field name is an
// error; a value wider than the field's registered width is truncated.
func (h *HeaderTemplate) PatchField(s *slab.Slab, name string, value []byte) error {
	f, ok := h.fields[name]
	if !ok {
		return fmt.Errorf("codec: unknown header field %q", name)
	}
	ptr := s.SlotPtr(int(h.SlabHandle))
	target := ptr[f.Offset : f.Offset+f.Width]
	n := copy(target, value)
	for i := n; i < f.Width; i++ {
		target[i] = ' '
	}
	return nil
}

// PatchDate hot-patches the "date" field, if registered, with an RFC1123
// timestamp.
func (h *HeaderTemplate) PatchDate(s *slab.Slab, date []byte) error {
	return h.PatchField(s, "date", date)
}

// PatchContentLength hot-patches the "content-length" field, if
// registered, with the decimal representation of length.
func (h *HeaderTemplate) PatchContentLength(s *slab.Slab, length int) error {
	return h.PatchField(s, "content-length", []byte(strconv.Itoa(length)))
}
