// Package bbolt implements the ports.Storage interface using bbolt (embedded B+ tree).
// Compiled graphs live in the "graphs" bucket as binary blobs keyed by graph name;
// their metadata lives in the "meta" bucket as JSON under the same key. Both are
// written in one transaction, so a crash mid-write cannot leave a graph without its
// metadata or corrupt a previously committed graph.
package bbolt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/corey/hotword/internal/ports"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketGraphs = []byte("graphs")
	bucketMeta   = []byte("meta")
)

// Store implements ports.Storage backed by bbolt.
type Store struct {
	db *bolt.DB
}

var _ ports.Storage = (*Store)(nil)

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGraph persists a compiled graph and its metadata under name.
func (s *Store) SaveGraph(name string, graph *ports.GraphData, meta *ports.GraphMeta) error {
	if name == "" {
		return fmt.Errorf("empty graph name")
	}
	if graph == nil {
		return fmt.Errorf("nil graph")
	}

	blob, err := encodeGraph(graph)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}

	if meta == nil {
		meta = &ports.GraphMeta{}
	}
	m := *meta
	m.Name = name
	metaJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		gb, err := tx.CreateBucketIfNotExists(bucketGraphs)
		if err != nil {
			return err
		}
		mb, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if err := gb.Put([]byte(name), blob); err != nil {
			return err
		}
		return mb.Put([]byte(name), metaJSON)
	})
}

// LoadGraph retrieves a graph by name.
// Returns nil, nil, nil if no graph is stored under name.
func (s *Store) LoadGraph(name string) (*ports.GraphData, *ports.GraphMeta, error) {
	var blob, metaJSON []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if gb := tx.Bucket(bucketGraphs); gb != nil {
			if v := gb.Get([]byte(name)); v != nil {
				blob = make([]byte, len(v))
				copy(blob, v)
			}
		}
		if mb := tx.Bucket(bucketMeta); mb != nil {
			if v := mb.Get([]byte(name)); v != nil {
				metaJSON = make([]byte, len(v))
				copy(metaJSON, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if blob == nil {
		return nil, nil, nil
	}

	graph, err := decodeGraph(blob)
	if err != nil {
		return nil, nil, fmt.Errorf("decode graph %q: %w", name, err)
	}

	meta := &ports.GraphMeta{Name: name}
	if metaJSON != nil {
		if err := json.Unmarshal(metaJSON, meta); err != nil {
			return nil, nil, fmt.Errorf("unmarshal meta %q: %w", name, err)
		}
	}
	return graph, meta, nil
}

// DeleteGraph removes a graph and its metadata.
// Idempotent: deleting a nonexistent graph is not an error.
func (s *Store) DeleteGraph(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketGraphs, bucketMeta} {
			b := tx.Bucket(bucket)
			if b == nil {
				continue
			}
			if err := b.Delete([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}
		return nil
	})
}

// ListGraphs returns the metadata of every stored graph, sorted by name.
func (s *Store) ListGraphs() ([]ports.GraphMeta, error) {
	var metas []ports.GraphMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket(bucketMeta)
		if mb == nil {
			return nil
		}
		return mb.ForEach(func(k, v []byte) error {
			var m ports.GraphMeta
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("unmarshal meta %q: %w", k, err)
			}
			m.Name = string(k)
			metas = append(metas, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}
