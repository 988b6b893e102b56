package timeline

import (
	"strconv"
	"time"
)

// Label caps per granularity.
const (
	maxDailyLabels      = 10
	maxMonthlyLabels    = 10
	maxYearlyLabels     = 8
	maxWideYearlyLabels = 5
)

// Label is a step marker placed under the slider track.
type Label struct {
	Percent float64   `json:"percent"`
	Text    string    `json:"text"`
	Date    time.Time `json:"date"`
}

// Labels lays out step labels for the index. Positions follow the index
// order of the dates, not their time offsets, so dense clusters of dates
// get room on the track.
func (x Index) Labels() []Label {
	if !x.Filterable() {
		return nil
	}
	switch x.granularity {
	case Daily:
		return x.dailyLabels()
	case Monthly:
		return x.groupedLabels(maxMonthlyLabels, func(t time.Time) string {
			return t.Format("2006-01")
		}, func(t time.Time) string {
			return t.Format("Jan 06")
		})
	default:
		limit := maxYearlyLabels
		if x.wide {
			limit = maxWideYearlyLabels
		}
		return x.groupedLabels(limit, func(t time.Time) string {
			return strconv.Itoa(t.Year())
		}, func(t time.Time) string {
			return strconv.Itoa(t.Year())
		})
	}
}

func (x Index) dailyLabels() []Label {
	n := len(x.dates)
	steps := min(maxDailyLabels, ceilDiv(n, 5))
	stride := ceilDiv(n, max(steps, 1))

	var labels []Label
	for i := 0; i < n; i += stride {
		labels = append(labels, Label{
			Percent: x.indexPercent(i),
			Text:    x.dates[i].Format("Jan 2"),
			Date:    x.dates[i],
		})
	}
	return labels
}

// groupedLabels keeps the first date of every group and then subsamples the
// groups by stride so that at most limit labels remain.
func (x Index) groupedLabels(limit int, key, text func(time.Time) string) []Label {
	type entry struct {
		date  time.Time
		index int
	}
	var groups []entry
	seen := make(map[string]struct{})
	for i, d := range x.dates {
		k := key(d)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		groups = append(groups, entry{date: d, index: i})
	}

	stride := max(1, ceilDiv(len(groups), limit))
	var labels []Label
	for i, g := range groups {
		if i%stride != 0 {
			continue
		}
		labels = append(labels, Label{
			Percent: x.indexPercent(g.index),
			Text:    text(g.date),
			Date:    g.date,
		})
	}
	return labels
}

func (x Index) indexPercent(i int) float64 {
	return float64(i) / float64(len(x.dates)-1) * 100
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// FormatDisplay renders a date for the handle read-outs, e.g. "Jun 15, 2022".
func FormatDisplay(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
