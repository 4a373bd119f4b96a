package fieldrt

// record.go offers an optional append-only inspection log with one
// summary entry (round time and typed-key count, keyed by sequence and
// device) per export produced during a run; the export values themselves
// are not stored. It is backed by BadgerDB the way
// examples/disk_eject wires arena-cache to an on-disk second-level
// store. The log is purely an inspection aid: nothing in the round
// procedure ever reads it back, so it never influences simulation
// correctness.
//
// © 2025 fieldrt authors. MIT License.

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/fieldrt/fieldrt/internal/export"
)

type recorder struct {
	db  *badger.DB
	seq uint64
}

func newRecorder(path string) (*recorder, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &recorder{db: db}, nil
}

// record appends one observation of e to the log — the round time and
// e's typed-key count — keyed by a sequence number and deviceID so that
// iteration order matches recording order.
func (r *recorder) record(deviceID string, now float64, e *export.Export) {
	r.seq++
	key := fmt.Sprintf("%020d:%s", r.seq, deviceID)
	value := fmt.Sprintf("t=%g keys=%d", now, len(export.Keys(e)))
	_ = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

// Close flushes and closes the underlying Badger database.
func (r *recorder) Close() error {
	return r.db.Close()
}
