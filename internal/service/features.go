package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FeatureStore persists map features. The file store and the DuckDB store
// in internal/db both implement it.
type FeatureStore interface {
	// Search returns matching features ordered by ID, paged by q.
	Search(ctx context.Context, q FeatureQuery) ([]FeatureRecord, error)
	Count(ctx context.Context, q FeatureQuery) (int, error)
	Get(ctx context.Context, id int64) (FeatureRecord, error)
	// Put inserts f, or replaces it when f.ID is already stored. A zero ID
	// gets the next free ID.
	Put(ctx context.Context, f FeatureRecord) (FeatureRecord, error)
	Delete(ctx context.Context, id int64) error
	// ClearType removes typeID from every feature using it and returns the
	// number of features changed.
	ClearType(ctx context.Context, typeID int64) (int, error)
	Close() error
}

// Matches reports whether f satisfies q's filters, ignoring paging.
func (q FeatureQuery) Matches(f FeatureRecord) bool {
	if len(q.IDs) > 0 && !slices.Contains(q.IDs, f.ID) {
		return false
	}
	if len(q.ItemIDs) > 0 && !slices.Contains(q.ItemIDs, f.ItemID) {
		return false
	}
	if len(q.TypeIDs) > 0 && (f.TypeID == nil || !slices.Contains(q.TypeIDs, *f.TypeID)) {
		return false
	}
	return true
}

// FileFeatureStore keeps features in memory and persists them to
// features.json on every change.
type FileFeatureStore struct {
	dataDir  string
	features map[int64]FeatureRecord
	nextID   int64
	bus      *EventBus
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewFileFeatureStore loads features from dataDir. bus may be nil.
func NewFileFeatureStore(dataDir string, bus *EventBus, logger *slog.Logger) *FileFeatureStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &FileFeatureStore{
		dataDir:  dataDir,
		features: make(map[int64]FeatureRecord),
		nextID:   1,
		bus:      bus,
		logger:   logger,
	}
	s.loadFromDisk()
	return s
}

func (s *FileFeatureStore) Search(ctx context.Context, q FeatureQuery) ([]FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []FeatureRecord
	for _, f := range s.features {
		if q.Matches(f) {
			matched = append(matched, f)
		}
	}
	slices.SortFunc(matched, func(a, b FeatureRecord) int { return int(a.ID - b.ID) })

	if q.PerPage <= 0 {
		return matched, nil
	}
	start := q.Offset()
	if start >= len(matched) {
		return []FeatureRecord{}, nil
	}
	end := min(start+q.PerPage, len(matched))
	return matched[start:end], nil
}

func (s *FileFeatureStore) Count(ctx context.Context, q FeatureQuery) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for _, f := range s.features {
		if q.Matches(f) {
			n++
		}
	}
	return n, nil
}

func (s *FileFeatureStore) Get(ctx context.Context, id int64) (FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.features[id]
	if !ok {
		return FeatureRecord{}, fmt.Errorf("feature %d: %w", id, ErrNotFound)
	}
	return f, nil
}

func (s *FileFeatureStore) Put(ctx context.Context, f FeatureRecord) (FeatureRecord, error) {
	if f.Geometry == nil || f.ItemID == 0 {
		return FeatureRecord{}, ErrMissingData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	action := "updated"
	if f.ID == 0 {
		f.ID = s.nextID
	}
	prev, existed := s.features[f.ID]
	if !existed {
		action = "created"
	}
	if f.ID >= s.nextID {
		s.nextID = f.ID + 1
	}
	s.features[f.ID] = f
	if err := s.saveToDisk(); err != nil {
		if existed {
			s.features[f.ID] = prev
		} else {
			delete(s.features, f.ID)
		}
		return FeatureRecord{}, err
	}

	s.bus.Publish(Event{Resource: ResourceFeatures, Action: action, ID: f.ID})
	return f, nil
}

func (s *FileFeatureStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.features[id]
	if !ok {
		return fmt.Errorf("feature %d: %w", id, ErrNotFound)
	}
	delete(s.features, id)
	if err := s.saveToDisk(); err != nil {
		s.features[id] = prev
		return err
	}
	s.bus.Publish(Event{Resource: ResourceFeatures, Action: "deleted", ID: id})
	return nil
}

func (s *FileFeatureStore) ClearType(ctx context.Context, typeID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []int64
	for id, f := range s.features {
		if f.TypeID != nil && *f.TypeID == typeID {
			f.TypeID = nil
			s.features[id] = f
			changed = append(changed, id)
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := s.saveToDisk(); err != nil {
		return 0, err
	}
	for _, id := range changed {
		s.bus.Publish(Event{Resource: ResourceFeatures, Action: "updated", ID: id})
	}
	s.logger.Info("type_cleared", "type", typeID, "features", len(changed))
	return len(changed), nil
}

// Close is a no-op; every change is already on disk.
func (s *FileFeatureStore) Close() error { return nil }

func (s *FileFeatureStore) dataFile() string {
	return filepath.Join(s.dataDir, "features.json")
}

func (s *FileFeatureStore) loadFromDisk() {
	data, err := os.ReadFile(s.dataFile())
	if err != nil {
		return
	}
	var features []FeatureRecord
	if err := json.Unmarshal(data, &features); err != nil {
		s.logger.Warn("features_file_invalid", "path", s.dataFile(), "error", err)
		return
	}
	for _, f := range features {
		s.features[f.ID] = f
		if f.ID >= s.nextID {
			s.nextID = f.ID + 1
		}
	}
}

func (s *FileFeatureStore) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	features := make([]FeatureRecord, 0, len(s.features))
	for _, f := range s.features {
		features = append(features, f)
	}
	slices.SortFunc(features, func(a, b FeatureRecord) int { return int(a.ID - b.ID) })

	data, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.dataFile(), data, 0644)
}
