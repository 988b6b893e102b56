package humastar

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"rangeMin":"12.5","rangeMax":80,"label":"Mill","flat":true}`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, s.Float("rangeMin"))
	assert.Equal(t, 80, s.Int("rangeMax"))
	assert.Equal(t, "Mill", s.String("label"))
	assert.True(t, s.Bool("flat"))
	assert.False(t, s.Has("color"))

	s, err = ParseSignals(nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = (&SignalsInput{RawBody: []byte("{")}).MustParse()
	assert.Error(t, err)
}

func TestPaginationLinks(t *testing.T) {
	u, _ := url.Parse("/api/v1/features/list?type_id=3")
	p := PageBody[int]{Total: 25, Page: 2, PerPage: 10}
	assert.Equal(t, 3, p.LastPage())

	links := p.PaginationLinks(u)
	require.Len(t, links, 4)
	assert.Equal(t, `</api/v1/features/list?page=1&per_page=10&type_id=3>; rel="first"`, links[0])
	assert.Contains(t, links[1], `page=1&`)
	assert.Contains(t, links[1], `rel="prev"`)
	assert.Contains(t, links[2], `page=3&`)
	assert.Contains(t, links[3], `rel="last"`)

	empty := PageBody[int]{PerPage: 10, Page: 1}
	assert.Len(t, empty.PaginationLinks(u), 2)
}

func TestActionLinkHeader(t *testing.T) {
	actions := ActionsFor(7, []ActionDef{
		{Rel: "delete", Pattern: "/api/v1/features/%d", Method: "DELETE", Title: "Delete feature"},
		{Rel: "popup", Pattern: "/api/v1/features/popup?feature_id=%d"},
	})
	require.Len(t, actions, 2)
	assert.Equal(t, `</api/v1/features/7>; rel="delete"; method="DELETE"; title="Delete feature"`, actions[0].LinkHeader())
	assert.Equal(t, `</api/v1/features/popup?feature_id=7>; rel="popup"`, actions[1].LinkHeader())
}

func TestParseLinkHeader(t *testing.T) {
	rel, href := parseLinkHeader(`</api/v1/types>; rel="types"`)
	assert.Equal(t, "types", rel)
	assert.Equal(t, "/api/v1/types", href)
}
