package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// TypeService manages feature types, persisted as types.json in the data
// directory.
type TypeService struct {
	dataDir string
	types   map[int64]FeatureType
	nextID  int64
	bus     *EventBus
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewTypeService loads existing types from dataDir. bus may be nil.
func NewTypeService(dataDir string, bus *EventBus, logger *slog.Logger) *TypeService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &TypeService{
		dataDir: dataDir,
		types:   make(map[int64]FeatureType),
		nextID:  1,
		bus:     bus,
		logger:  logger,
	}
	s.loadFromDisk()
	return s
}

// List returns every type ordered by label, then ID.
func (s *TypeService) List() []FeatureType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FeatureType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b FeatureType) int {
		if c := strings.Compare(strings.ToLower(a.Label), strings.ToLower(b.Label)); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out
}

// Get returns a type by ID.
func (s *TypeService) Get(id int64) (FeatureType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[id]
	return t, ok
}

// Lookup returns a snapshot of every type keyed by ID.
func (s *TypeService) Lookup() map[int64]FeatureType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]FeatureType, len(s.types))
	for k, v := range s.types {
		out[k] = v
	}
	return out
}

// Create adds a type. Label and colour are required and the colour must
// not already be used by another type, compared case-insensitively.
func (s *TypeService) Create(label, color string) (FeatureType, error) {
	label = strings.TrimSpace(label)
	color = normalizeColor(color)
	if label == "" || color == "" {
		return FeatureType{}, ErrMissingData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.colorTaken(color, 0) {
		return FeatureType{}, fmt.Errorf("%w: %s", ErrDuplicateColor, color)
	}
	t := FeatureType{ID: s.nextID, Label: label, Color: color}
	s.nextID++
	s.types[t.ID] = t
	if err := s.saveToDisk(); err != nil {
		delete(s.types, t.ID)
		return FeatureType{}, err
	}

	s.logger.Info("type_created", "id", t.ID, "label", t.Label, "color", t.Color)
	s.bus.Publish(Event{Resource: ResourceTypes, Action: "created", ID: t.ID})
	return t, nil
}

// Update changes a type's colour, and its label when label is not empty.
func (s *TypeService) Update(id int64, label, color string) (FeatureType, error) {
	color = normalizeColor(color)
	if id == 0 || color == "" {
		return FeatureType{}, ErrMissingData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.types[id]
	if !ok {
		return FeatureType{}, fmt.Errorf("type %d: %w", id, ErrNotFound)
	}
	if s.colorTaken(color, id) {
		return FeatureType{}, fmt.Errorf("%w: %s", ErrDuplicateColor, color)
	}
	t := prev
	t.Color = color
	if l := strings.TrimSpace(label); l != "" {
		t.Label = l
	}
	s.types[id] = t
	if err := s.saveToDisk(); err != nil {
		s.types[id] = prev
		return FeatureType{}, err
	}

	s.logger.Info("type_updated", "id", id, "color", t.Color)
	s.bus.Publish(Event{Resource: ResourceTypes, Action: "updated", ID: id})
	return t, nil
}

// Delete removes a type. Callers clear the type from its features.
func (s *TypeService) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.types[id]
	if !ok {
		return fmt.Errorf("type %d: %w", id, ErrNotFound)
	}
	delete(s.types, id)
	if err := s.saveToDisk(); err != nil {
		s.types[id] = prev
		return err
	}

	s.logger.Info("type_deleted", "id", id)
	s.bus.Publish(Event{Resource: ResourceTypes, Action: "deleted", ID: id})
	return nil
}

func (s *TypeService) colorTaken(color string, except int64) bool {
	for id, t := range s.types {
		if id != except && strings.EqualFold(t.Color, color) {
			return true
		}
	}
	return false
}

func normalizeColor(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func (s *TypeService) configFile() string {
	return filepath.Join(s.dataDir, "types.json")
}

// loadFromDisk starts empty when the file is missing or unreadable.
func (s *TypeService) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return
	}
	var types []FeatureType
	if err := json.Unmarshal(data, &types); err != nil {
		s.logger.Warn("types_file_invalid", "path", s.configFile(), "error", err)
		return
	}
	for _, t := range types {
		s.types[t.ID] = t
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
}

func (s *TypeService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	types := make([]FeatureType, 0, len(s.types))
	for _, t := range s.types {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b FeatureType) int { return int(a.ID - b.ID) })

	data, err := json.MarshalIndent(types, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}
