// Package storage provides persistent data storage for the attendance
// analysis service. It uses BoltDB as the underlying storage engine to keep
// per-student attendance records and the latest risk assessments.
//
// The package provides thread-safe operations for storing and retrieving
// records with efficient per-student range queries and automatic bucket
// management.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Tharun06102005/smart-attendance-system/internal/attendance"
)

const (
	recordsBucket     = "records"     // Bucket for attendance records
	assessmentsBucket = "assessments" // Bucket for latest risk assessments
)

// Store provides persistent storage for attendance data using BoltDB.
// Records are keyed "studentID_unixnano" so one cursor seek covers a
// student's full history in chronological insert order.
type Store struct {
	db *bbolt.DB
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "attendance-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordsBucket)); err != nil {
			return fmt.Errorf("create records bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(assessmentsBucket)); err != nil {
			return fmt.Errorf("create assessments bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreRecord appends an attendance record for a student. The key embeds the
// insert timestamp so repeated writes never collide.
func (s *Store) StoreRecord(studentID string, record attendance.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recordsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}

		key := fmt.Sprintf("%s_%d", studentID, time.Now().UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetRecords retrieves all attendance records for one student. Malformed
// records are skipped rather than failing the whole read.
func (s *Store) GetRecords(studentID string) ([]attendance.Record, error) {
	var records []attendance.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recordsBucket))
		c := b.Cursor()

		prefix := []byte(studentID + "_")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record attendance.Record
			if err := json.Unmarshal(v, &record); err != nil {
				continue // Skip malformed records
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}

// StudentIDs lists every student that has at least one stored record.
func (s *Store) StudentIDs() ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recordsBucket))
		return b.ForEach(func(k, _ []byte) error {
			if i := bytes.LastIndexByte(k, '_'); i > 0 {
				id := string(k[:i])
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
			return nil
		})
	})

	return ids, err
}

// StoreAssessment saves the latest serialized assessment for a student,
// replacing any previous one.
func (s *Store) StoreAssessment(studentID string, assessment any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(assessmentsBucket))

		data, err := json.Marshal(assessment)
		if err != nil {
			return fmt.Errorf("marshal assessment: %w", err)
		}
		return b.Put([]byte(studentID), data)
	})
}

// GetAssessment loads the latest stored assessment for a student into out.
// Returns false when no assessment is stored.
func (s *Store) GetAssessment(studentID string, out any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(assessmentsBucket))
		data := b.Get([]byte(studentID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, out)
	})
	return found, err
}
