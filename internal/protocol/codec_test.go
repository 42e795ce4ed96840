package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func brotliCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("brotli write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("brotli close: %v", err)
	}
	return buf.Bytes()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		op   uint32
		body []byte
	}{
		{"message", OpMessage, []byte(`{"cmd":"DANMU_MSG"}`)},
		{"auth", OpAuth, []byte(`{"uid":1}`)},
		{"heartbeat", OpHeartbeat, HeartbeatBody},
		{"empty body", OpHeartbeatReply, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := Encode(VerRaw, tt.op, 1, tt.body)

			frames, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(frames))
			}
			f := frames[0]
			if f.Version != VerRaw || f.Op != tt.op || f.SequenceID != 1 {
				t.Errorf("header mismatch: %+v", f)
			}
			if !bytes.Equal(f.Body, tt.body) {
				t.Errorf("body mismatch: got %q want %q", f.Body, tt.body)
			}
		})
	}
}

func TestDecodeTruncatedTrailingFrame(t *testing.T) {
	full := Encode(VerRaw, OpMessage, 1, []byte("hello world"))

	// Every prefix shorter than the full frame decodes to zero frames
	// without error.
	for n := 0; n < len(full); n++ {
		frames, err := Decode(full[:n])
		if err != nil {
			t.Fatalf("Decode(%d bytes): %v", n, err)
		}
		if len(frames) != 0 {
			t.Fatalf("Decode(%d bytes): got %d frames, want 0", n, len(frames))
		}
	}
}

func TestDecodeCompleteThenTruncated(t *testing.T) {
	first := Encode(VerRaw, OpMessage, 1, []byte("complete"))
	second := Encode(VerRaw, OpMessage, 1, []byte("cut off"))
	stream := append(append([]byte{}, first...), second[:len(second)-3]...)

	frames, err := Decode(stream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if string(frames[0].Body) != "complete" {
		t.Errorf("body = %q, want %q", frames[0].Body, "complete")
	}
}

func TestDecodeMultipleFrames(t *testing.T) {
	stream := append(
		Encode(VerRaw, OpMessage, 1, []byte("one")),
		Encode(VerRaw, OpMessage, 1, []byte("two"))...,
	)

	frames, err := Decode(stream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if string(frames[0].Body) != "one" || string(frames[1].Body) != "two" {
		t.Errorf("bodies = %q, %q", frames[0].Body, frames[1].Body)
	}
}

func TestDecodeZlibEnvelope(t *testing.T) {
	inner := append(
		Encode(VerRaw, OpMessage, 1, []byte("first")),
		Encode(VerRaw, OpMessage, 1, []byte("second"))...,
	)
	outer := Encode(VerZlib, OpMessage, 1, zlibCompress(t, inner))

	frames, err := Decode(outer)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if string(frames[0].Body) != "first" || string(frames[1].Body) != "second" {
		t.Errorf("nested order wrong: %q, %q", frames[0].Body, frames[1].Body)
	}
}

func TestDecodeBrotliEnvelope(t *testing.T) {
	inner := Encode(VerRaw, OpMessage, 7, []byte(`{"cmd":"X"}`))
	outer := Encode(VerBrotli, OpMessage, 1, brotliCompress(t, inner))

	frames, err := Decode(outer)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].SequenceID != 7 || string(frames[0].Body) != `{"cmd":"X"}` {
		t.Errorf("inner frame mismatch: %+v", frames[0])
	}
}

func TestDecodeCorruptZlibFails(t *testing.T) {
	outer := Encode(VerZlib, OpMessage, 1, []byte{0xde, 0xad, 0xbe, 0xef})
	if _, err := Decode(outer); err == nil {
		t.Fatal("Decode of corrupt zlib body succeeded, want error")
	}
}

func TestDecodeNestingDepthLimit(t *testing.T) {
	payload := Encode(VerRaw, OpMessage, 1, []byte("deep"))
	for i := 0; i <= MaxNestingDepth; i++ {
		payload = Encode(VerZlib, OpMessage, 1, zlibCompress(t, payload))
	}

	_, err := Decode(payload)
	if !errors.Is(err, ErrNestingTooDeep) {
		t.Fatalf("err = %v, want ErrNestingTooDeep", err)
	}
}

func TestDecodeSkipsUnknownOp(t *testing.T) {
	stream := append(
		Encode(VerRaw, 999, 1, []byte("bogus")),
		Encode(VerRaw, OpMessage, 1, []byte("good"))...,
	)

	frames, err := Decode(stream)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frames) != 1 || string(frames[0].Body) != "good" {
		t.Fatalf("frames = %+v, want only the valid frame", frames)
	}
}
