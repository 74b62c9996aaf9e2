package chunkstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"
)

// bucketChunks is the reserved top-level bucket holding one sub-bucket per
// project. The double-underscore prefix keeps it out of collection listings
// when the file is shared with the embedded vector store.
var bucketChunks = []byte("__chunks")

// boltChunk is the JSON payload stored per chunk. Order is the key, so it is
// not repeated in the value.
type boltChunk struct {
	ID       int64             `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BoltStore keeps chunks in a bbolt file, usually the same file as the
// embedded vector store. The caller owns the database lifecycle.
type BoltStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

var _ Store = (*BoltStore)(nil)

func NewBoltStore(db *bbolt.DB, logger *slog.Logger) *BoltStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BoltStore{db: db, logger: logger}
}

func (s *BoltStore) InsertMany(ctx context.Context, chunks []Chunk, batchSize int) (int, error) {
	if err := validateAll(chunks); err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	inserted := 0
	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		end := min(start+batchSize, len(chunks))

		err := s.db.Update(func(tx *bbolt.Tx) error {
			top, err := tx.CreateBucketIfNotExists(bucketChunks)
			if err != nil {
				return err
			}
			for _, c := range chunks[start:end] {
				b, err := top.CreateBucketIfNotExists([]byte(c.ProjectID))
				if err != nil {
					return err
				}
				seq, err := b.NextSequence()
				if err != nil {
					return err
				}
				data, err := json.Marshal(boltChunk{
					ID:       int64(seq),
					Text:     c.Text,
					Metadata: c.Metadata,
				})
				if err != nil {
					return err
				}
				if err := b.Put(orderKey(c.Order), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return inserted, fmt.Errorf("failed to insert chunk batch starting at %d: %w", start, err)
		}
		inserted += end - start
	}

	s.logger.Debug("chunks stored", "count", inserted)
	return inserted, nil
}

func (s *BoltStore) GetPage(_ context.Context, projectID string, page, pageSize int) ([]Chunk, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var chunks []Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := projectBucket(tx, projectID)
		if b == nil {
			return nil
		}

		skip := (page - 1) * pageSize
		c := b.Cursor()
		for k, v := c.First(); k != nil && len(chunks) < pageSize; k, v = c.Next() {
			if skip > 0 {
				skip--
				continue
			}
			var stored boltChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("failed to decode chunk of project %s: %w", projectID, err)
			}
			chunks = append(chunks, Chunk{
				ID:        stored.ID,
				ProjectID: projectID,
				Order:     int(binary.BigEndian.Uint64(k)),
				Text:      stored.Text,
				Metadata:  stored.Metadata,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *BoltStore) Count(_ context.Context, projectID string) (int64, error) {
	var count int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := projectBucket(tx, projectID); b != nil {
			count = int64(b.Stats().KeyN)
		}
		return nil
	})
	return count, err
}

func (s *BoltStore) DeleteByProject(_ context.Context, projectID string) (int64, error) {
	var count int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		top := tx.Bucket(bucketChunks)
		if top == nil {
			return nil
		}
		b := top.Bucket([]byte(projectID))
		if b == nil {
			return nil
		}
		count = int64(b.Stats().KeyN)
		return top.DeleteBucket([]byte(projectID))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks of project %s: %w", projectID, err)
	}
	if count > 0 {
		s.logger.Info("chunks deleted", "project", projectID, "count", count)
	}
	return count, nil
}

func projectBucket(tx *bbolt.Tx, projectID string) *bbolt.Bucket {
	top := tx.Bucket(bucketChunks)
	if top == nil {
		return nil
	}
	return top.Bucket([]byte(projectID))
}

// orderKey encodes the chunk order big-endian so cursor iteration follows
// chunk order.
func orderKey(order int) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(order))
	return key[:]
}
