package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-mapping/internal/service"
)

const schema = `CREATE TABLE IF NOT EXISTS features (
	id           BIGINT PRIMARY KEY,
	item_id      BIGINT NOT NULL,
	title        VARCHAR,
	label        VARCHAR,
	geometry     VARCHAR NOT NULL,
	marker_color VARCHAR,
	type_id      BIGINT,
	dates        VARCHAR
)`

const columns = `id, item_id, title, label, geometry, marker_color, type_id, dates`

// FeatureStore is a service.FeatureStore backed by a DuckDB table.
type FeatureStore struct {
	db     *sql.DB
	bus    *service.EventBus
	logger *slog.Logger
	// mu serializes ID allocation with inserts.
	mu sync.Mutex
}

var _ service.FeatureStore = (*FeatureStore)(nil)

// NewFeatureStore creates the features table if needed.
func NewFeatureStore(ctx context.Context, conn *sql.DB, bus *service.EventBus, logger *slog.Logger) (*FeatureStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create features table: %w", err)
	}
	return &FeatureStore{db: conn, bus: bus, logger: logger}, nil
}

func where(q service.FeatureQuery) (string, []any) {
	var clauses []string
	var args []any
	in := func(col string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		marks := make([]string, len(ids))
		for i, id := range ids {
			marks[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, col+" IN ("+strings.Join(marks, ", ")+")")
	}
	in("id", q.IDs)
	in("item_id", q.ItemIDs)
	in("type_id", q.TypeIDs)
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *FeatureStore) Search(ctx context.Context, q service.FeatureQuery) ([]service.FeatureRecord, error) {
	cond, args := where(q)
	query := "SELECT " + columns + " FROM features" + cond + " ORDER BY id"
	if q.PerPage > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.PerPage, q.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search features: %w", err)
	}
	defer rows.Close()

	out := []service.FeatureRecord{}
	for rows.Next() {
		f, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *FeatureStore) Count(ctx context.Context, q service.FeatureQuery) (int, error) {
	cond, args := where(q)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM features"+cond, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	return n, nil
}

func (s *FeatureStore) Get(ctx context.Context, id int64) (service.FeatureRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM features WHERE id = ?", id)
	f, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return service.FeatureRecord{}, fmt.Errorf("feature %d: %w", id, service.ErrNotFound)
	}
	return f, err
}

func (s *FeatureStore) Put(ctx context.Context, f service.FeatureRecord) (service.FeatureRecord, error) {
	if f.Geometry == nil || f.ItemID == 0 {
		return service.FeatureRecord{}, service.ErrMissingData
	}
	geom, err := json.Marshal(f.Geometry)
	if err != nil {
		return service.FeatureRecord{}, fmt.Errorf("encode geometry: %w", err)
	}
	dates, err := json.Marshal(f.Dates)
	if err != nil {
		return service.FeatureRecord{}, fmt.Errorf("encode dates: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == 0 {
		if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM features").Scan(&f.ID); err != nil {
			return service.FeatureRecord{}, fmt.Errorf("next feature id: %w", err)
		}
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM features WHERE id = ?", f.ID).Scan(&exists); err != nil {
		return service.FeatureRecord{}, fmt.Errorf("lookup feature %d: %w", f.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO features ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.ItemID, nullString(f.Title), nullString(f.Label), string(geom),
		nullString(f.MarkerColor), f.TypeID, string(dates),
	)
	if err != nil {
		return service.FeatureRecord{}, fmt.Errorf("store feature %d: %w", f.ID, err)
	}

	action := "created"
	if exists {
		action = "updated"
	}
	s.bus.Publish(service.Event{Resource: service.ResourceFeatures, Action: action, ID: f.ID})
	return f, nil
}

func (s *FeatureStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM features WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete feature %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feature %d: %w", id, service.ErrNotFound)
	}
	s.bus.Publish(service.Event{Resource: service.ResourceFeatures, Action: "deleted", ID: id})
	return nil
}

func (s *FeatureStore) ClearType(ctx context.Context, typeID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE features SET type_id = NULL WHERE type_id = ?", typeID)
	if err != nil {
		return 0, fmt.Errorf("clear type %d: %w", typeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("type_cleared", "type", typeID, "features", n)
	}
	return int(n), nil
}

// Close leaves the shared connection open; db.Close owns it.
func (s *FeatureStore) Close() error { return nil }

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (service.FeatureRecord, error) {
	var (
		f                   service.FeatureRecord
		title, label, color sql.NullString
		geom                string
		typeID              sql.NullInt64
		dates               sql.NullString
	)
	if err := r.Scan(&f.ID, &f.ItemID, &title, &label, &geom, &color, &typeID, &dates); err != nil {
		return service.FeatureRecord{}, err
	}
	f.Title, f.Label, f.MarkerColor = title.String, label.String, color.String
	if typeID.Valid {
		t := typeID.Int64
		f.TypeID = &t
	}
	g, err := geojson.UnmarshalGeometry([]byte(geom))
	if err != nil {
		return service.FeatureRecord{}, fmt.Errorf("feature %d geometry: %w", f.ID, err)
	}
	f.Geometry = g
	if dates.Valid && dates.String != "" && dates.String != "null" {
		if err := json.Unmarshal([]byte(dates.String), &f.Dates); err != nil {
			return service.FeatureRecord{}, fmt.Errorf("feature %d dates: %w", f.ID, err)
		}
	}
	return f, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
