// Package store persists remote parameter overrides and the interlock event
// history in a bbolt database. Records are CBOR encoded.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"

	"github.com/sweeney/iib-interlock/internal/interlock"
	"github.com/sweeney/iib-interlock/internal/log"
	"github.com/sweeney/iib-interlock/internal/profile"
)

var (
	bucketParams  = []byte("params")
	bucketHistory = []byte("history")
	bucketMeta    = []byte("meta")

	keyVariant = []byte("variant")
)

// ErrVariantMismatch is returned by Open when the database was written for a
// different variant.
var ErrVariantMismatch = errors.New("store: database belongs to another variant")

// Timestamps keep sub-second precision on disk.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Store is the on-disk state of one board.
type Store struct {
	db         *bbolt.DB
	maxHistory int
}

type paramRecord struct {
	Value   float32   `cbor:"1,keyasint"`
	Updated time.Time `cbor:"2,keyasint"`
}

type eventRecord struct {
	Timestamp     time.Time `cbor:"1,keyasint"`
	Type          string    `cbor:"2,keyasint"`
	Variant       string    `cbor:"3,keyasint"`
	InterlockBits uint32    `cbor:"4,keyasint"`
	AlarmBits     uint32    `cbor:"5,keyasint"`
	Causes        []string  `cbor:"6,keyasint,omitempty"`
}

// Open opens or creates the database at path for variant. maxHistory bounds
// the event history; 0 keeps everything.
func Open(path, variant string, maxHistory int) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketParams, bucketHistory, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		stored := meta.Get(keyVariant)
		if stored == nil {
			return meta.Put(keyVariant, []byte(variant))
		}
		if string(stored) != variant {
			return fmt.Errorf("%w: %s, want %s", ErrVariantMismatch, stored, variant)
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, maxHistory: maxHistory}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func paramKey(p profile.Param) []byte {
	return []byte{byte(p.Target), p.Channel, byte(p.Field)}
}

// SaveParam records an applied parameter update, replacing any earlier value
// for the same target, channel and field.
func (s *Store) SaveParam(p profile.Param, at time.Time) error {
	data, err := encMode.Marshal(paramRecord{Value: p.Value, Updated: at.UTC()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	log.Debug("store: saving param %s", p)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketParams).Put(paramKey(p), data)
	})
}

// Params returns every stored override in key order.
func (s *Store) Params() ([]profile.Param, error) {
	var out []profile.Param
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketParams).ForEach(func(k, v []byte) error {
			if len(k) != 3 {
				return fmt.Errorf("bad param key %x", k)
			}
			var rec paramRecord
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode param %x: %w", k, err)
			}
			out = append(out, profile.Param{
				Target:  profile.Target(k[0]),
				Channel: k[1],
				Field:   profile.Field(k[2]),
				Value:   rec.Value,
			})
			return nil
		})
	})
	return out, err
}

// ResetParams forgets every override.
func (s *Store) ResetParams() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketParams); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketParams)
		return err
	})
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

// Append adds e to the history, dropping the oldest entries beyond the limit.
func (s *Store) Append(e interlock.Event) error {
	data, err := encMode.Marshal(eventRecord{
		Timestamp:     e.Timestamp.UTC(),
		Type:          string(e.Type),
		Variant:       e.Variant,
		InterlockBits: e.InterlockBits,
		AlarmBits:     e.AlarmBits,
		Causes:        e.Causes,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		if s.maxHistory <= 0 {
			return nil
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for i := 0; i < len(keys)-s.maxHistory; i++ {
			if err := b.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n events, newest first.
func (s *Store) Recent(n int) ([]interlock.Event, error) {
	var out []interlock.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketHistory).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var rec eventRecord
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode event %x: %w", k, err)
			}
			out = append(out, interlock.Event{
				Timestamp:     rec.Timestamp,
				Type:          interlock.EventType(rec.Type),
				Variant:       rec.Variant,
				InterlockBits: rec.InterlockBits,
				AlarmBits:     rec.AlarmBits,
				Causes:        rec.Causes,
			})
		}
		return nil
	})
	return out, err
}
