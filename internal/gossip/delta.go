// Package gossip implements cluster-wide weight delta propagation over
// hashicorp/memberlist: a compact wire record carrying a sequence-gated
// increment to one trie path's observation weights.
package gossip

import (
	"encoding/binary"
	"fmt"
)

// intentDeltaHeaderSize is the fixed portion of a marshaled IntentDelta:
// a 2-byte context length prefix, two 2-byte weight deltas, and an 8-byte
// sequence number. The variable-length context path follows.
//
// The context is transmitted in full rather than as a hash: a hash would
// need an out-of-band hash-to-path table on the receiving side, which
// nothing in this system maintains, so the wire format instead carries the
// bytes a receiving Broadcaster walks directly with Observe.
const intentDeltaHeaderSize = 2 + 2 + 2 + 8

// IntentDelta is a weight increment for one context path, gated by a
// strictly monotonic sequence number so a replayed or reordered gossip
// message cannot regress the learned state.
type IntentDelta struct {
	Context        []byte
	DeltaTrue      uint16
	DeltaFalse     uint16
	SequenceNumber uint64
}

// Marshal manually encodes d into a little-endian wire record, matching
// the manual marshal style used elsewhere in this codebase rather than a
// reflection-based encoder.
func (d IntentDelta) Marshal() []byte {
	buf := make([]byte, intentDeltaHeaderSize+len(d.Context))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(d.Context)))
	binary.LittleEndian.PutUint16(buf[2:4], d.DeltaTrue)
	binary.LittleEndian.PutUint16(buf[4:6], d.DeltaFalse)
	binary.LittleEndian.PutUint64(buf[6:14], d.SequenceNumber)
	copy(buf[intentDeltaHeaderSize:], d.Context)
	return buf
}

// UnmarshalIntentDelta decodes a wire record produced by Marshal.
func UnmarshalIntentDelta(data []byte) (IntentDelta, error) {
	if len(data) < intentDeltaHeaderSize {
		return IntentDelta{}, fmt.Errorf("gossip: intent delta truncated: got %d bytes, want at least %d", len(data), intentDeltaHeaderSize)
	}
	ctxLen := int(binary.LittleEndian.Uint16(data[0:2]))
	if len(data) < intentDeltaHeaderSize+ctxLen {
		return IntentDelta{}, fmt.Errorf("gossip: intent delta context truncated: got %d bytes, want %d", len(data), intentDeltaHeaderSize+ctxLen)
	}
	ctx := make([]byte, ctxLen)
	copy(ctx, data[intentDeltaHeaderSize:intentDeltaHeaderSize+ctxLen])
	return IntentDelta{
		Context:        ctx,
		DeltaTrue:      binary.LittleEndian.Uint16(data[2:4]),
		DeltaFalse:     binary.LittleEndian.Uint16(data[4:6]),
		SequenceNumber: binary.LittleEndian.Uint64(data[6:14]),
	}, nil
}
