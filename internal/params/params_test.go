package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantPage   int
		wantOffset int
	}{
		{"defaults", "", 10, 1, 0},
		{"explicit", "limit=20&page=3", 20, 3, 40},
		{"limit clamped to max", "limit=500", 50, 1, 0},
		{"zero limit falls back", "limit=0", 10, 1, 0},
		{"negative limit falls back", "limit=-5", 10, 1, 0},
		{"zero page falls back", "page=0", 10, 1, 0},
		{"garbage ignored", "limit=abc&page=xyz", 10, 1, 0},
		{"whitespace trimmed", "limit=%2025%20&page=2", 25, 2, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)

			p := ParsePagination(q)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestComputeMeta(t *testing.T) {
	p := Pagination{Limit: 10, Page: 2, Offset: 10}
	p.ComputeMeta(35)

	assert.Equal(t, 35, p.Total)
	assert.Equal(t, 4, p.TotalPages)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)

	last := Pagination{Limit: 10, Page: 4, Offset: 30}
	last.ComputeMeta(35)
	assert.True(t, last.HasPrev)
	assert.False(t, last.HasNext)

	empty := Pagination{Limit: 10, Page: 1}
	empty.ComputeMeta(0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasPrev)
	assert.False(t, empty.HasNext)
}
