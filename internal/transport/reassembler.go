package transport

import "fmt"

// Reassembler accumulates fragmented chunks of one in-flight message into
// a whole payload. Each incoming chunk reports a payload_offset and
// payload_len relative to the complete message; a new buffer is started
// when payload_offset == 0, and chunks are appended until the
// accumulated length reaches payload_len, at which point the message is
// complete.
//
// A Reassembler handles exactly one message at a time; Reset discards an
// in-flight buffer (used on disconnect, per the reassembly lifecycle).
type Reassembler struct {
	buf        []byte
	payloadLen int
	active     bool
}

// Feed appends chunk at payloadOffset within a message of total length
// payloadLen. It returns the complete message and true once accumulated
// bytes reach payloadLen; otherwise it returns nil, false. A non-zero
// payloadOffset arriving before any chunk has started a buffer is
// rejected with an error — the reassembler requires the first chunk of
// a message to carry payloadOffset == 0.
func (r *Reassembler) Feed(chunk []byte, payloadOffset, payloadLen int) ([]byte, bool, error) {
	if payloadOffset == 0 {
		r.buf = make([]byte, 0, payloadLen)
		r.payloadLen = payloadLen
		r.active = true
	}
	if !r.active {
		return nil, false, fmt.Errorf("transport: chunk at offset %d arrived with no message in progress", payloadOffset)
	}
	if payloadOffset != len(r.buf) {
		return nil, false, fmt.Errorf("transport: out-of-order chunk, offset %d, accumulated %d", payloadOffset, len(r.buf))
	}

	r.buf = append(r.buf, chunk...)
	if len(r.buf) < r.payloadLen {
		return nil, false, nil
	}

	complete := r.buf
	r.buf = nil
	r.active = false
	r.payloadLen = 0
	return complete, true, nil
}

// Reset discards any in-flight buffer, as happens on disconnect.
func (r *Reassembler) Reset() {
	r.buf = nil
	r.payloadLen = 0
	r.active = false
}

// Active reports whether a message is currently being accumulated.
func (r *Reassembler) Active() bool {
	return r.active
}
