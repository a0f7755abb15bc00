// Package store persists the most recently seen announcement post.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sjsage522/couponwatcher/logger"
	werrors "sjsage522/couponwatcher/pkg/errors"
)

// ErrNoRecord is returned by LoadRecord when nothing usable is stored
var ErrNoRecord = errors.New("no latest record")

// LatestRecord is the single persisted record
type LatestRecord struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Coupon    *string `json:"coupon"`
	Timestamp string  `json:"timestamp"`
}

// CouponCode returns the stored coupon and whether one was recorded
func (r LatestRecord) CouponCode() (string, bool) {
	if r.Coupon == nil {
		return "", false
	}
	return *r.Coupon, true
}

// NewRecord builds a record; an empty coupon with found=false is stored as null
func NewRecord(url, title, coupon string, found bool, at time.Time) LatestRecord {
	rec := LatestRecord{URL: url, Title: title}
	if found {
		rec.Coupon = &coupon
	}
	if !at.IsZero() {
		rec.Timestamp = at.Format(time.RFC3339)
	}
	return rec
}

// Store reads and writes the latest record
type Store interface {
	// Load returns the stored URL; a missing or malformed record yields ok=false
	Load() (url string, ok bool)
	// LoadRecord returns the full stored record or ErrNoRecord
	LoadRecord() (*LatestRecord, error)
	// Save overwrites the stored record
	Save(rec LatestRecord) error
}

// FileStore keeps the record as a JSON document at a fixed path
type FileStore struct {
	path string
	now  func() time.Time
	log  *logger.Logger
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		now:  time.Now,
		log:  logger.ForStore(),
	}
}

// Path returns the record file location
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store
func (s *FileStore) Load() (string, bool) {
	rec, err := s.LoadRecord()
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("Ignoring unreadable latest record")
		}
		return "", false
	}
	return rec.URL, true
}

// LoadRecord implements Store
func (s *FileStore) LoadRecord() (*LatestRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, werrors.NewState("failed to read latest record", err)
	}

	var rec LatestRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoRecord, werrors.NewState("malformed latest record", err))
	}
	if rec.URL == "" {
		return nil, ErrNoRecord
	}
	return &rec, nil
}

// Save implements Store. The record is written to a temporary file in the same
// directory and renamed over the target, so readers never observe a partial file.
func (s *FileStore) Save(rec LatestRecord) error {
	if rec.Timestamp == "" {
		rec.Timestamp = s.now().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return werrors.NewPersistence("failed to encode latest record", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return werrors.NewPersistence("failed to create data directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return werrors.NewPersistence("failed to create temp record", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return werrors.NewPersistence("failed to write temp record", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return werrors.NewPersistence("failed to sync temp record", err)
	}
	if err := tmp.Close(); err != nil {
		return werrors.NewPersistence("failed to close temp record", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return werrors.NewPersistence("failed to replace latest record", err)
	}

	coupon, _ := rec.CouponCode()
	s.log.Info().
		Str("url", rec.URL).
		Str("coupon", coupon).
		Msg("Saved latest record")
	return nil
}
