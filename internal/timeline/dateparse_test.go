package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{name: "iso date", raw: "2020-01-01", want: utc(2020, 1, 1), ok: true},
		{name: "iso datetime utc", raw: "2020-01-01T10:30:00Z", want: time.Date(2020, 1, 1, 10, 30, 0, 0, time.UTC), ok: true},
		{name: "iso datetime offset", raw: "2020-01-01T12:00:00+02:00", want: time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC), ok: true},
		{name: "iso with trailing text", raw: "2020-05-17 (approx.)", want: utc(2020, 5, 17), ok: true},
		{name: "day first slash", raw: "15/06/2022", want: utc(2022, 6, 15), ok: true},
		{name: "single digit slash", raw: "3/4/2020", want: utc(2020, 4, 3), ok: true},
		{name: "slash impossible month", raw: "06/15/2022", ok: false},
		{name: "slash rollover rejected", raw: "31/02/2020", ok: false},
		{name: "bare year", raw: "1999", want: utc(1999, 1, 1), ok: true},
		{name: "year month", raw: "2021-07", want: utc(2021, 7, 1), ok: true},
		{name: "year month invalid", raw: "2021-13", ok: false},
		{name: "long form", raw: "June 15, 2022", want: utc(2022, 6, 15), ok: true},
		{name: "short form", raw: "Jun 15, 2022", want: utc(2022, 6, 15), ok: true},
		{name: "month year", raw: "March 1850", want: utc(1850, 3, 1), ok: true},
		{name: "whitespace", raw: "  2020-01-01  ", want: utc(2020, 1, 1), ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "garbage", raw: "circa the war", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseISOMatchesDirectParse(t *testing.T) {
	for _, raw := range []string{"1900-02-28", "2000-02-29", "2022-06-15", "2099-12-31"} {
		want, err := time.Parse(time.DateOnly, raw)
		require.NoError(t, err)
		got, ok := ParseDate(raw)
		require.True(t, ok, raw)
		assert.True(t, want.Equal(got), raw)
	}
}

func TestParserMonthFirst(t *testing.T) {
	p := NewParser(ParserOptions{MonthFirst: true})

	got, ok := p.Parse("03/04/2020")
	require.True(t, ok)
	assert.True(t, utc(2020, 3, 4).Equal(got))

	got, ok = DefaultParser.Parse("03/04/2020")
	require.True(t, ok)
	assert.True(t, utc(2020, 4, 3).Equal(got))
}

func TestParserLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	p := NewParser(ParserOptions{Location: loc})

	got, ok := p.Parse("2020")
	require.True(t, ok)
	assert.True(t, time.Date(2020, 1, 1, 0, 0, 0, 0, loc).Equal(got))

	// ISO date-only stays UTC.
	got, ok = p.Parse("2020-01-01")
	require.True(t, ok)
	assert.True(t, utc(2020, 1, 1).Equal(got))
}

func TestParseAll(t *testing.T) {
	got := DefaultParser.ParseAll([]string{"2020-01-01", "nope", "", "2021"})
	require.Len(t, got, 2)
	assert.True(t, utc(2021, 1, 1).Equal(got[1]))
}
