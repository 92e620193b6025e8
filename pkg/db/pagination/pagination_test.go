package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type row struct {
	ID        string
	CreatedAt time.Time
}

func TestPageTrimsAndBuildsCursor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := []*row{
		{ID: "3", CreatedAt: now},
		{ID: "2", CreatedAt: now.Add(-time.Minute)},
		{ID: "1", CreatedAt: now.Add(-2 * time.Minute)},
	}

	page, info := Page(data, 2, func(r *row) (time.Time, string) { return r.CreatedAt, r.ID })
	require.Len(t, page, 2)
	require.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextCursor)
	require.NoError(t, err)
	require.Equal(t, "2", cursor.ID)
	require.Equal(t, now.Add(-time.Minute).Format(time.RFC3339Nano), cursor.CreatedAt)
}

func TestPageLastPage(t *testing.T) {
	data := []*row{{ID: "1", CreatedAt: time.Now()}}

	page, info := Page(data, 5, func(r *row) (time.Time, string) { return r.CreatedAt, r.ID })
	require.Len(t, page, 1)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}
