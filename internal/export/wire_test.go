package export

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/fieldrt/fieldrt/internal/field"
	"github.com/fieldrt/fieldrt/internal/trace"
)

func encodeInt(v int, w *bytes.Buffer) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(int64(v)))
	w.Write(tmp[:])
}

func decodeInt(r *byteReader) (int, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return int(int64(binary.BigEndian.Uint64(b))), nil
}

func testManifest() *Manifest {
	return NewManifest(
		RegisterScalar[int](encodeInt, decodeInt),
		RegisterField[int, int](encodeInt, decodeInt, func(a, b int) bool { return a < b }, encodeInt, decodeInt),
	)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := testManifest()
	e := New()
	Insert(e, trace.Hash(1), 42)
	Insert(e, trace.Hash(2), field.FromPairs(0, []int{1, 2, 3}, []int{10, 20, 30}))
	InsertVoid(e, trace.Hash(3))

	payload, err := Encode(m, e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(m, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !Equal(e, got) {
		t.Fatalf("decode(encode(e)) != e")
	}
}

func TestEncodeRejectsUnmanifestedType(t *testing.T) {
	m := NewManifest() // no codecs registered
	e := New()
	Insert(e, trace.Hash(1), "a string type the manifest doesn't know")
	if _, err := Encode(m, e); err == nil {
		t.Fatalf("expected Encode to reject a type absent from the manifest")
	}
}

func TestDecodeRejectsWrongProtocolVersion(t *testing.T) {
	m := testManifest()
	_, err := Decode(m, []byte{0xFF, 0, 0})
	if err == nil {
		t.Fatalf("expected Decode to reject an unknown protocol version")
	}
}

func TestDeterministicExportsAreByteIdentical(t *testing.T) {
	// Testable Property 7: under deterministic inputs, two devices
	// producing the same export content must serialise identically.
	m := testManifest()
	build := func() *Export {
		e := New()
		Insert(e, trace.Hash(1), 7)
		Insert(e, trace.Hash(2), field.FromPairs(0, []int{2, 1}, []int{20, 10}))
		return e
	}
	a, err := Encode(m, build())
	if err != nil {
		t.Fatalf("Encode a: %v", err)
	}
	b, err := Encode(m, build())
	if err != nil {
		t.Fatalf("Encode b: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("byte-identical exports expected, got divergent encodings")
	}
}
