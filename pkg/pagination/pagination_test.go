package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2025, 1, 10, 9, 30, 0, 123, time.UTC), ID: uuid.New()}
	decoded, err := ParseCursor(EncodeCursor(cursor))
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(cursor.CreatedAt))
	assert.Equal(t, cursor.ID, decoded.ID)

	empty, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCursor("not-a-cursor!")
	assert.Error(t, err)
}

type row struct {
	id uuid.UUID
	at time.Time
}

func TestTrim(t *testing.T) {
	base := time.Now().UTC()
	rows := []row{{uuid.New(), base}, {uuid.New(), base.Add(-time.Minute)}, {uuid.New(), base.Add(-2 * time.Minute)}}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Trim(rows, 2, key)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	last := Trim(rows[2:], 2, key)
	assert.Len(t, last.Items, 1)
	assert.Empty(t, last.NextCursor)

	none := Trim[row](nil, 2, key)
	assert.NotNil(t, none.Items)
}
