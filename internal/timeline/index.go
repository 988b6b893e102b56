package timeline

import (
	"math"
	"slices"
	"time"
)

// Granularity is the time unit used for slider labels.
type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// Dated is anything that carries raw, unparsed date strings.
type Dated interface {
	DateStrings() []string
}

// Index is the sorted, duplicate-free set of instants found across a
// feature collection. It is built once, after loading completes.
type Index struct {
	dates       []time.Time
	granularity Granularity
	wide        bool
}

// Build indexes items with DefaultParser.
func Build[T Dated](items []T) Index {
	return BuildWith(DefaultParser, items)
}

// BuildWith indexes items, parsing each raw string with p. Instants are
// deduplicated at millisecond resolution.
func BuildWith[T Dated](p *Parser, items []T) Index {
	seen := make(map[int64]struct{})
	var dates []time.Time
	for _, item := range items {
		for _, raw := range item.DateStrings() {
			t, ok := p.Parse(raw)
			if !ok {
				continue
			}
			key := t.UnixMilli()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			dates = append(dates, time.UnixMilli(key).UTC())
		}
	}
	return NewIndex(dates)
}

// NewIndex builds an index from instants that are already parsed.
func NewIndex(dates []time.Time) Index {
	seen := make(map[int64]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		key := d.UnixMilli()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, time.UnixMilli(key).UTC())
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })

	idx := Index{dates: out}
	idx.granularity, idx.wide = granularityFor(idx.Span())
	return idx
}

func granularityFor(span time.Duration) (Granularity, bool) {
	days := span.Hours() / 24
	switch {
	case days <= 31:
		return Daily, false
	case days <= 365:
		return Monthly, false
	case days <= 3650:
		return Yearly, false
	default:
		return Yearly, true
	}
}

// Len returns the number of distinct instants.
func (x Index) Len() int { return len(x.dates) }

// Filterable reports whether the index spans at least two distinct
// instants. Timeline UI must stay hidden otherwise.
func (x Index) Filterable() bool { return len(x.dates) >= 2 }

// Dates returns a copy of the sorted instants.
func (x Index) Dates() []time.Time { return slices.Clone(x.dates) }

// Min returns the earliest instant, or the zero time for an empty index.
func (x Index) Min() time.Time {
	if len(x.dates) == 0 {
		return time.Time{}
	}
	return x.dates[0]
}

// Max returns the latest instant, or the zero time for an empty index.
func (x Index) Max() time.Time {
	if len(x.dates) == 0 {
		return time.Time{}
	}
	return x.dates[len(x.dates)-1]
}

// Span returns Max - Min. Spans beyond about 292 years saturate; use
// DateAt and PercentOf for positions.
func (x Index) Span() time.Duration {
	if len(x.dates) < 2 {
		return 0
	}
	return x.Max().Sub(x.Min())
}

// Granularity returns the label unit chosen from the span.
func (x Index) Granularity() Granularity { return x.granularity }

// Wide reports whether the span exceeds ten years, which thins yearly labels.
func (x Index) Wide() bool { return x.wide }

// DateAt linearly interpolates percent (0-100) over [Min, Max].
func (x Index) DateAt(percent float64) time.Time {
	switch percent = clampPercent(percent); percent {
	case 0:
		return x.Min()
	case 100:
		return x.Max()
	}
	return interpolate(x.Min(), x.Max(), percent)
}

// PercentOf maps t back onto the 0-100 scale, clamped.
func (x Index) PercentOf(t time.Time) float64 {
	if len(x.dates) < 2 {
		return 0
	}
	return positionOf(x.Min(), x.Max(), t)
}

// interpolate and positionOf work in epoch milliseconds so that spans of
// several centuries do not overflow time.Duration.
func interpolate(lo, hi time.Time, percent float64) time.Time {
	from, to := lo.UnixMilli(), hi.UnixMilli()
	ms := from + int64(math.Round(float64(to-from)*percent/100))
	return time.UnixMilli(ms).In(lo.Location())
}

func positionOf(lo, hi, t time.Time) float64 {
	from, to := lo.UnixMilli(), hi.UnixMilli()
	if to == from {
		return 0
	}
	return clampPercent(float64(t.UnixMilli()-from) / float64(to-from) * 100)
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
