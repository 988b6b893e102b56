package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// ParseFeatureQuery builds a FeatureQuery from the loader's JSON filters.
// items_query may restrict item IDs through "id" or "item_id";
// features_query may restrict "id", "item_id" and "type_id". Each value is
// a single ID or a list of IDs, as numbers or strings. Empty filters match
// everything.
func ParseFeatureQuery(itemsQuery, featuresQuery string, page, perPage int) (FeatureQuery, error) {
	q := FeatureQuery{Page: page, PerPage: perPage}

	items, err := decodeFilter(itemsQuery)
	if err != nil {
		return q, fmt.Errorf("items_query: %w", err)
	}
	features, err := decodeFilter(featuresQuery)
	if err != nil {
		return q, fmt.Errorf("features_query: %w", err)
	}

	for _, key := range []string{"id", "item_id"} {
		ids, err := idList(items[key])
		if err != nil {
			return q, fmt.Errorf("items_query.%s: %w", key, err)
		}
		q.ItemIDs = append(q.ItemIDs, ids...)
	}
	if q.IDs, err = idList(features["id"]); err != nil {
		return q, fmt.Errorf("features_query.id: %w", err)
	}
	ids, err := idList(features["item_id"])
	if err != nil {
		return q, fmt.Errorf("features_query.item_id: %w", err)
	}
	q.ItemIDs = append(q.ItemIDs, ids...)
	if q.TypeIDs, err = idList(features["type_id"]); err != nil {
		return q, fmt.Errorf("features_query.type_id: %w", err)
	}
	return q, nil
}

func decodeFilter(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := sonic.UnmarshalString(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func idList(v any) ([]int64, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []any:
		var out []int64
		for _, e := range v {
			ids, err := idList(e)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
		return out, nil
	case float64:
		return []int64{int64(v)}, nil
	case string:
		if v == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", v)
		}
		return []int64{n}, nil
	}
	return nil, fmt.Errorf("unsupported value %v", v)
}

// FeatureRows runs q against store and renders the loader rows, resolving
// each feature's type through types.
func FeatureRows(ctx context.Context, store FeatureStore, types *TypeService, q FeatureQuery) ([]FeatureRow, error) {
	features, err := store.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	lookup := types.Lookup()
	rows := make([]FeatureRow, 0, len(features))
	for _, f := range features {
		var t *FeatureType
		if f.TypeID != nil {
			if ft, ok := lookup[*f.TypeID]; ok {
				t = &ft
			}
		}
		rows = append(rows, f.Row(t))
	}
	return rows, nil
}
