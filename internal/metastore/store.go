// Package metastore maps template ids to the metadata captured when a
// spectrum was submitted to the simulator. The simulator round-trip does not
// preserve caller identifiers, so this store is the only channel through
// which provenance returns to the stitched outputs.
//
// The store is backed by a bbolt file inside the pipeline working directory
// and lives exactly as long as one pipeline invocation. Records round-trip
// through JSON, so every lookup returns an independent copy: mutations by
// the combiner can never reach the caller's original metadata. JSON also
// means numeric metadata comes back as float64 regardless of the submitted
// Go type.
package metastore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/cwbudde/algo-spectro/spectrum"
)

var bucketTemplates = []byte("templates")

// Store is a template-id keyed metadata store.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens a store file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("metastore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTemplates)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("metastore: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Record stores a copy of meta keyed by template id. Re-recording an id
// overwrites the previous entry.
func (s *Store) Record(id int, meta spectrum.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("metastore: encode metadata for template %d: %w", id, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTemplates).Put(key(id), data)
	})
}

// Lookup returns a fresh copy of the metadata recorded for id.
func (s *Store) Lookup(id int) (spectrum.Metadata, error) {
	var meta spectrum.Metadata
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTemplates).Get(key(id))
		if data == nil {
			return fmt.Errorf("metastore: no metadata for template %d", id)
		}
		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(id int) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}
