package export

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/fieldrt/fieldrt/internal/field"
	"github.com/fieldrt/fieldrt/internal/trace"
)

// Codec knows how to find, encode and decode every export entry of one
// concrete type. Manifest holds an ordered, closed set of Codecs — the
// program's "type manifest" from spec.md §9: any value crossing the
// export boundary must have a registered Codec, checked by Manifest.Check
// each time Encode runs.
type Codec struct {
	typ       reflect.Type
	encodeAll func(e *Export, w *bytes.Buffer)
	decodeAll func(r *byteReader) (map[trace.Hash]exportValue, error)
}

// Manifest is the program's closed, ordered list of serialisable types.
// Entries are encoded on the wire in manifest order, as required by
// spec.md §6.
type Manifest struct {
	codecs []Codec
}

// NewManifest builds a Manifest from the given codecs, in the order they
// should appear on the wire.
func NewManifest(codecs ...Codec) *Manifest {
	return &Manifest{codecs: codecs}
}

// Check returns ErrSerialisation if any value currently stored in e has no
// registered codec in m — "an out-of-set type is a compile-time error" per
// spec.md §4.3; here it is caught at encode time, since Encode calls Check
// before writing any bytes.
func (m *Manifest) Check(e *Export) error {
	for _, ev := range e.values {
		if !m.hasCodecFor(ev.typeOf()) {
			return fmt.Errorf("%w: type %s has no registered codec", ErrSerialisation, ev.typeOf())
		}
	}
	return nil
}

func (m *Manifest) hasCodecFor(t reflect.Type) bool {
	for _, c := range m.codecs {
		if c.typ == t {
			return true
		}
	}
	return false
}

// RegisterScalar builds a Codec for a plain (non-Field) type T out of a
// value-level encode/decode pair.
func RegisterScalar[T any](encodeVal func(T, *bytes.Buffer), decodeVal func(*byteReader) (T, error)) Codec {
	typ := reflect.TypeFor[T]()
	return Codec{
		typ: typ,
		encodeAll: func(e *Export, w *bytes.Buffer) {
			keys := keysOfType(e, typ)
			writeUvarint(w, uint64(len(keys)))
			for _, k := range keys {
				writeUvarint(w, uint64(k))
				encodeVal(Get[T](e, k), w)
			}
		},
		decodeAll: func(r *byteReader) (map[trace.Hash]exportValue, error) {
			n, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			out := make(map[trace.Hash]exportValue, n)
			for i := uint64(0); i < n; i++ {
				kraw, err := r.uvarint()
				if err != nil {
					return nil, err
				}
				v, err := decodeVal(r)
				if err != nil {
					return nil, err
				}
				out[trace.Hash(kraw)] = typedValue[T]{v: v}
			}
			return out, nil
		},
	}
}

// RegisterField builds a Codec for a Field[ID, T] export entry: default T,
// var-int count, then (device_t, T) pairs in ascending device order, per
// spec.md §6's "T-serialised for a Field<T>" rule.
func RegisterField[ID comparable, T any](
	encodeID func(ID, *bytes.Buffer), decodeID func(*byteReader) (ID, error),
	lessID func(a, b ID) bool,
	encodeVal func(T, *bytes.Buffer), decodeVal func(*byteReader) (T, error),
) Codec {
	typ := reflect.TypeFor[field.Field[ID, T]]()
	return Codec{
		typ: typ,
		encodeAll: func(e *Export, w *bytes.Buffer) {
			keys := keysOfType(e, typ)
			writeUvarint(w, uint64(len(keys)))
			for _, k := range keys {
				writeUvarint(w, uint64(k))
				f := Get[field.Field[ID, T]](e, k)
				encodeVal(f.Default, w)
				ids := make([]ID, 0, len(f.Exceptions))
				for id := range f.Exceptions {
					ids = append(ids, id)
				}
				sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
				writeUvarint(w, uint64(len(ids)))
				for _, id := range ids {
					encodeID(id, w)
					encodeVal(f.Exceptions[id], w)
				}
			}
		},
		decodeAll: func(r *byteReader) (map[trace.Hash]exportValue, error) {
			n, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			out := make(map[trace.Hash]exportValue, n)
			for i := uint64(0); i < n; i++ {
				kraw, err := r.uvarint()
				if err != nil {
					return nil, err
				}
				def, err := decodeVal(r)
				if err != nil {
					return nil, err
				}
				cnt, err := r.uvarint()
				if err != nil {
					return nil, err
				}
				f := field.Field[ID, T]{Default: def}
				if cnt > 0 {
					f.Exceptions = make(map[ID]T, cnt)
				}
				for j := uint64(0); j < cnt; j++ {
					id, err := decodeID(r)
					if err != nil {
						return nil, err
					}
					v, err := decodeVal(r)
					if err != nil {
						return nil, err
					}
					f.Exceptions[id] = v
				}
				out[trace.Hash(kraw)] = typedValue[field.Field[ID, T]]{v: f}
			}
			return out, nil
		},
	}
}

func keysOfType(e *Export, typ reflect.Type) []trace.Hash {
	out := make([]trace.Hash, 0)
	for k, v := range e.values {
		if v.typeOf() == typ {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
