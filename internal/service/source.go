package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// SourceFile is a GeoJSON file that can be imported as features.
type SourceFile struct {
	Name string `json:"name" doc:"File name" example:"churches.geojson"`
	Size string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
}

// ImportResult summarizes a source import.
type ImportResult struct {
	File     string `json:"file" doc:"Imported file"`
	Imported int    `json:"imported" doc:"Features stored"`
	Skipped  int    `json:"skipped" doc:"Features without an item_id or geometry"`
}

// SourceService lists GeoJSON files in the sources directory and imports
// them into a FeatureStore.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a source service rooted at dataDir/sources.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

// List returns the importable files.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".geojson" && ext != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{Name: entry.Name(), Size: formatSize(info.Size())})
	}
	return files, nil
}

// Import reads a FeatureCollection and stores each feature. Properties
// recognised: item_id (required), id, title, label, marker_color, type_id
// and dates (a list) or date (a single value).
func (s *SourceService) Import(ctx context.Context, name string, store FeatureStore) (ImportResult, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ImportResult{}, fmt.Errorf("invalid file name %q: %w", name, ErrMissingData)
	}
	data, err := os.ReadFile(filepath.Join(s.sourcesDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ImportResult{}, fmt.Errorf("source %q: %w", name, ErrNotFound)
		}
		return ImportResult{}, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return ImportResult{}, fmt.Errorf("source %q: %w", name, err)
	}

	res := ImportResult{File: name}
	for _, f := range fc.Features {
		rec, ok := recordFromFeature(f)
		if !ok {
			res.Skipped++
			continue
		}
		if _, err := store.Put(ctx, rec); err != nil {
			return res, fmt.Errorf("import %q: %w", name, err)
		}
		res.Imported++
	}
	return res, nil
}

func recordFromFeature(f *geojson.Feature) (FeatureRecord, bool) {
	if f.Geometry == nil {
		return FeatureRecord{}, false
	}
	props := f.Properties
	itemID := propInt(props["item_id"])
	if itemID == 0 {
		return FeatureRecord{}, false
	}
	rec := FeatureRecord{
		ID:          propInt(props["id"]),
		ItemID:      itemID,
		Title:       props.MustString("title", ""),
		Label:       props.MustString("label", ""),
		Geometry:    geojson.NewGeometry(f.Geometry),
		MarkerColor: strings.ToLower(props.MustString("marker_color", "")),
	}
	if t := propInt(props["type_id"]); t != 0 {
		rec.TypeID = &t
	}
	switch d := props["dates"].(type) {
	case []any:
		for _, v := range d {
			if s := propString(v); s != "" {
				rec.Dates = append(rec.Dates, s)
			}
		}
	case nil:
		if s := propString(props["date"]); s != "" {
			rec.Dates = []string{s}
		}
	default:
		if s := propString(d); s != "" {
			rec.Dates = []string{s}
		}
	}
	return rec, true
}

func propInt(v any) int64 {
	switch v := v.(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func propString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
