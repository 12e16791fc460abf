package transport

import (
	"bytes"
	"testing"
)

func TestReassemblerSingleChunk(t *testing.T) {
	var r Reassembler
	msg := []byte("hello world")
	complete, done, err := r.Feed(msg, 0, len(msg))
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if !done {
		t.Fatal("Feed() done = false, want true for a single full-length chunk")
	}
	if !bytes.Equal(complete, msg) {
		t.Errorf("Feed() = %q, want %q", complete, msg)
	}
}

func TestReassemblerMultipleChunks(t *testing.T) {
	var r Reassembler
	full := []byte("the quick brown fox jumps over the lazy dog")
	chunks := [][]byte{full[0:10], full[10:25], full[25:]}

	var offset int
	var lastComplete []byte
	var lastDone bool
	for _, c := range chunks {
		complete, done, err := r.Feed(c, offset, len(full))
		if err != nil {
			t.Fatalf("Feed() error: %v", err)
		}
		offset += len(c)
		lastComplete, lastDone = complete, done
	}

	if !lastDone {
		t.Fatal("final Feed() done = false")
	}
	if !bytes.Equal(lastComplete, full) {
		t.Errorf("reassembled = %q, want %q", lastComplete, full)
	}
}

func TestReassemblerIntermediateChunksNotDone(t *testing.T) {
	var r Reassembler
	full := []byte("0123456789")
	_, done, err := r.Feed(full[0:4], 0, len(full))
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if done {
		t.Fatal("Feed() done = true on a partial chunk")
	}
}

func TestReassemblerResetDiscardsInFlight(t *testing.T) {
	var r Reassembler
	full := []byte("0123456789")
	r.Feed(full[0:4], 0, len(full))
	if !r.Active() {
		t.Fatal("Active() = false after a partial chunk was fed")
	}
	r.Reset()
	if r.Active() {
		t.Fatal("Active() = true after Reset")
	}

	// A fresh message after reset must start cleanly.
	complete, done, err := r.Feed(full, 0, len(full))
	if err != nil || !done || !bytes.Equal(complete, full) {
		t.Fatalf("Feed() after reset = (%q, %v, %v)", complete, done, err)
	}
}

func TestReassemblerOutOfOrderChunkErrors(t *testing.T) {
	var r Reassembler
	full := []byte("0123456789")
	r.Feed(full[0:4], 0, len(full))
	if _, _, err := r.Feed(full[6:], 6, len(full)); err == nil {
		t.Fatal("Feed() with out-of-order offset did not error")
	}
}
