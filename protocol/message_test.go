package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, msg := range []*Message{
		New(KindOK, nil),
		New(KindInit, []byte{1, 2, 3}),
		New(KindRay, bytes.Repeat([]byte{0xAB}, 193)),
	} {
		var buf bytes.Buffer
		if err := msg.Encode(&buf); err != nil {
			t.Fatalf("encode %s: %v", msg.Kind, err)
		}

		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("decode %s: %v", msg.Kind, err)
		}
		if got.Kind != msg.Kind || !bytes.Equal(got.Body, msg.Body) {
			t.Errorf("round trip mismatch for %s", msg.Kind)
		}
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	msg := New(KindSyncMesh, []byte("abcd"))
	if err := msg.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	if len(raw) != HeaderSize+4 {
		t.Fatalf("frame is %d bytes, want %d", len(raw), HeaderSize+4)
	}
	if k := binary.LittleEndian.Uint32(raw[0:4]); k != uint32(KindSyncMesh) {
		t.Errorf("kind field = %d, want %d", k, KindSyncMesh)
	}
	if n := binary.LittleEndian.Uint32(raw[4:8]); n != 4 {
		t.Errorf("size field = %d, want 4", n)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := New(KindSyncConfig, []byte("full body")).Encode(&buf); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]

	if _, err := Decode(bytes.NewReader(truncated)); err == nil {
		t.Error("expected error decoding a truncated body")
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Error("expected error decoding a truncated header")
	}
	if _, err := Decode(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("empty stream should yield io.EOF, got %v", err)
	}
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(KindRay))
	binary.LittleEndian.PutUint32(header[4:8], uint32(MaxBodySize)+1)

	if _, err := Decode(bytes.NewReader(header[:])); err == nil {
		t.Error("expected error for a body size beyond the maximum")
	}
}

func TestStableKindValues(t *testing.T) {
	// The numeric ids are a wire contract shared with any other
	// implementation; a renumbering is a breaking change.
	want := map[Kind]uint32{
		KindNone: 0, KindOK: 1, KindError: 2,
		KindInit:       100,
		KindSyncConfig: 200, KindSyncShader: 201, KindSyncTexture: 202,
		KindSyncMaterial: 203, KindSyncMesh: 204, KindSyncCamera: 205,
		KindSyncEmissive: 206, KindSyncWBVH: 207, KindBuildBVH: 208,
		KindSyncImage:   295,
		KindRenderStart: 300, KindRenderStop: 301, KindRenderPause: 302, KindRenderResume: 303,
		KindRenderStats: 400,
		KindRay:         500,
	}
	for k, v := range want {
		if uint32(k) != v {
			t.Errorf("%s = %d, want %d", k, uint32(k), v)
		}
	}
}
