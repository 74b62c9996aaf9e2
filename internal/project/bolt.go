package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// bucketProjects is reserved in the shared bbolt file alongside the chunk
// and collection buckets.
var bucketProjects = []byte("__projects")

// BoltRegistry stores projects in a bbolt file. The caller owns the database
// lifecycle.
type BoltRegistry struct {
	db     *bbolt.DB
	logger *slog.Logger
}

var _ Registry = (*BoltRegistry)(nil)

func NewBoltRegistry(db *bbolt.DB, logger *slog.Logger) *BoltRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &BoltRegistry{db: db, logger: logger}
}

func (r *BoltRegistry) GetOrCreate(_ context.Context, id string) (*Project, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	var p Project
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketProjects)
		if err != nil {
			return err
		}

		if data := b.Get([]byte(id)); data != nil {
			return json.Unmarshal(data, &p)
		}

		p = Project{ID: id, CreatedAt: time.Now().UTC()}
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project %s: %w", id, err)
	}
	return &p, nil
}

func (r *BoltRegistry) List(_ context.Context, page, pageSize int) ([]Project, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	var projects []Project
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var p Project
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			projects = append(projects, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	// Bucket order is lexical by id; listing matches the relational
	// registry's creation order instead.
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})

	start := (page - 1) * pageSize
	if start >= len(projects) {
		return nil, nil
	}
	end := min(start+pageSize, len(projects))
	return projects[start:end], nil
}
