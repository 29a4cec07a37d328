// Package boltdb is an alternative local tier that keeps each container in
// its own bucket of a bbolt database, one key per field.
package boltdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"maple-party/internal/persist"
)

var bucketContainers = []byte("containers")

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	db, err := bolt.Open(cleanPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketContainers)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucketContainers, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, container string) (persist.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields := persist.Fields{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers).Bucket([]byte(container))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			// bbolt values are only valid for the life of the transaction.
			fields[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load container %q: %w", container, err)
	}
	return fields, nil
}

// Save replaces the stored fields of container.
func (s *Store) Save(ctx context.Context, container string, fields persist.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketContainers)
		if root.Bucket([]byte(container)) != nil {
			if err := root.DeleteBucket([]byte(container)); err != nil {
				return err
			}
		}
		b, err := root.CreateBucket([]byte(container))
		if err != nil {
			return err
		}
		for key, value := range fields {
			if err := b.Put([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save container %q: %w", container, err)
	}
	return nil
}
