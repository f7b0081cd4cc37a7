// Package store keeps prediction history in a bbolt file. Records are keyed
// by student and time so a student's history is one contiguous key range.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/jrmsu/ojtinsight/insight"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

const predictionsBucket = "predictions"

// AnonymousStudent is the student ID recorded when a request carries none.
const AnonymousStudent = "anonymous"

// keyTime is a fixed-width UTC layout, so keys sort chronologically.
const keyTime = "2006-01-02T15:04:05.000000000Z"

// Source tells which endpoint produced a record.
type Source string

const (
	SourceFeatures Source = "features"
	SourceSnapshot Source = "snapshot"
)

// Record is one stored prediction.
type Record struct {
	ID         string             `json:"id"`
	StudentID  string             `json:"student_id"`
	Source     Source             `json:"source"`
	CreatedAt  time.Time          `json:"created_at"`
	Input      map[string]any     `json:"input,omitempty"`
	Prediction insight.Prediction `json:"prediction"`
}

// Store is a bbolt-backed prediction history. It is safe for concurrent use.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ojtErrors.Wrapf(err, "failed to create %s", dir)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, ojtErrors.Wrap(err, "failed to open database")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, ojtErrors.Wrap(err, "create predictions bucket")
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func studentPrefix(studentID string) []byte {
	return []byte(studentID + "/")
}

// Save stores a prediction and returns the record. A missing student ID is
// recorded as AnonymousStudent; IDs containing '/' are rejected.
func (s *Store) Save(ctx context.Context, studentID string, src Source, input map[string]any, p insight.Prediction) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if studentID == "" {
		studentID = AnonymousStudent
	}
	if strings.Contains(studentID, "/") {
		return nil, ojtErrors.NewValidationError("student_id", "cannot contain '/'", studentID)
	}

	rec := &Record{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		Source:     src,
		CreatedAt:  s.now().UTC(),
		Input:      input,
		Prediction: p,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, ojtErrors.Wrap(err, "marshal record")
	}

	key := append(studentPrefix(studentID), []byte(rec.CreatedAt.Format(keyTime)+"/"+rec.ID)...)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(predictionsBucket)).Put(key, data)
	})
	if err != nil {
		return nil, ojtErrors.Wrap(err, "store prediction")
	}
	return rec, nil
}

// History returns a student's records, newest first. A limit of 0 or less
// returns all of them.
func (s *Store) History(ctx context.Context, studentID string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := studentPrefix(studentID)

	var records []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()

		// Seek past the prefix range and walk backwards.
		upper := append([]byte(studentID), '/'+1)
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return ojtErrors.Wrapf(err, "decode record %s", k)
			}
			records = append(records, rec)
			if limit > 0 && len(records) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
