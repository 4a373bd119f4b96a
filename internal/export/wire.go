package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fieldrt/fieldrt/internal/trace"
)

// ErrSerialisation is returned when an Export holds a value of a type the
// program's Manifest does not know how to serialise, or when decoding
// encounters a malformed or unexpected wire payload.
var ErrSerialisation = errors.New("export: serialisation error")

// ProtocolVersion is written as the first byte of every encoded Export.
const ProtocolVersion byte = 1

// byteReader is a tiny cursor over an encode buffer, used by Codec.decodeAll
// implementations; kept unexported since it is wire.go's private plumbing.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: truncated var-int", ErrSerialisation)
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated payload", ErrSerialisation)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func writeUvarint(w *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.Write(tmp[:n])
}

// Encode serialises e according to m's type manifest: a one-byte protocol
// version, a var-int count of typed-entry blocks, a var-int count of void
// entries, then one block per registered type (in manifest order) holding
// its own var-int count and ascending-trace-order (trace_t, value) pairs,
// and finally the void trace keys in ascending order.
func Encode(m *Manifest, e *Export) ([]byte, error) {
	if err := m.Check(e); err != nil {
		return nil, err
	}
	var w bytes.Buffer
	w.WriteByte(ProtocolVersion)
	writeUvarint(&w, uint64(len(m.codecs)))
	voidKeys := VoidKeys(e)
	writeUvarint(&w, uint64(len(voidKeys)))
	for _, c := range m.codecs {
		c.encodeAll(e, &w)
	}
	for _, k := range voidKeys {
		writeUvarint(&w, uint64(k))
	}
	return w.Bytes(), nil
}

// Decode reconstructs an Export from bytes produced by Encode using the
// same Manifest. Decode(Encode(e)) == e for any Export e whose values are
// all covered by m (spec.md §8 property 5: round-trip lossless).
func Decode(m *Manifest, data []byte) (*Export, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrSerialisation)
	}
	if data[0] != ProtocolVersion {
		return nil, fmt.Errorf("%w: unsupported protocol version %d", ErrSerialisation, data[0])
	}
	r := &byteReader{buf: data, pos: 1}
	typedCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if int(typedCount) != len(m.codecs) {
		return nil, fmt.Errorf("%w: manifest has %d types, payload declares %d", ErrSerialisation, len(m.codecs), typedCount)
	}
	voidCount, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	e := New()
	for _, c := range m.codecs {
		entries, err := c.decodeAll(r)
		if err != nil {
			return nil, err
		}
		if e.values == nil && len(entries) > 0 {
			e.values = make(map[trace.Hash]exportValue, len(entries))
		}
		for k, v := range entries {
			e.values[k] = v
		}
	}
	if voidCount > 0 {
		e.voids = make(map[trace.Hash]struct{}, voidCount)
	}
	for i := uint64(0); i < voidCount; i++ {
		kraw, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		e.voids[trace.Hash(kraw)] = struct{}{}
	}
	return e, nil
}
