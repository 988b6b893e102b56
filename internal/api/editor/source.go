package editor

import (
	"context"
	"iter"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/joeblew999/plat-mapping/internal/loader"
	"github.com/joeblew999/plat-mapping/internal/service"
)

// StoreSource pages features straight out of a FeatureStore in the shape
// the map loader produces, so the live timeline runs the same viewer as a
// remote page without an HTTP round trip.
type StoreSource struct {
	Features service.FeatureStore
	Types    *service.TypeService
	PerPage  int
}

func (s StoreSource) Pages(ctx context.Context, q loader.Query) iter.Seq2[[]loader.Feature, error] {
	return func(yield func([]loader.Feature, error) bool) {
		fq, err := s.query(q)
		if err != nil {
			yield(nil, err)
			return
		}
		lookup := s.Types.Lookup()
		for page := 1; ; page++ {
			fq.Page = page
			recs, err := s.Features.Search(ctx, fq)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(recs) == 0 {
				return
			}
			out := make([]loader.Feature, 0, len(recs))
			for _, r := range recs {
				out = append(out, toLoaderFeature(r, lookup))
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

func (s StoreSource) query(q loader.Query) (service.FeatureQuery, error) {
	items, err := sonic.MarshalString(q.Items)
	if err != nil {
		return service.FeatureQuery{}, err
	}
	features, err := sonic.MarshalString(q.Features)
	if err != nil {
		return service.FeatureQuery{}, err
	}
	perPage := s.PerPage
	if perPage <= 0 {
		perPage = service.DefaultPerPage
	}
	return service.ParseFeatureQuery(items, features, 1, perPage)
}

func toLoaderFeature(r service.FeatureRecord, types map[int64]service.FeatureType) loader.Feature {
	f := loader.Feature{
		ID:         r.ID,
		ResourceID: r.ItemID,
		Color:      r.MarkerColor,
		Dates:      r.Dates,
	}
	if r.Geometry != nil {
		f.Geometry = r.Geometry.Geometry()
	}
	if r.TypeID != nil {
		if t, ok := types[*r.TypeID]; ok {
			f.Color = t.Color
			f.TypeID = strconv.FormatInt(t.ID, 10)
		}
	}
	return f
}
