package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundtrip(t *testing.T) {
	rec := &ImageRecord{
		ID:        "img-1",
		Filename:  "cat.png",
		CreatedAt: time.Date(2023, 7, 14, 10, 30, 0, 123456789, time.UTC),
	}

	for _, sort := range []SortField{SortCreatedAt, SortFilename} {
		c := CursorFor(rec, sort)
		token := EncodeCursor(c)
		require.NotEmpty(t, token)

		decoded, err := DecodeCursor(token)
		require.NoError(t, err)
		assert.Equal(t, c, decoded)
	}
}

func TestDecodeCursor(t *testing.T) {
	t.Run("empty token means no cursor", func(t *testing.T) {
		c, err := DecodeCursor("")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("garbage is a validation error", func(t *testing.T) {
		for _, token := range []string{"not base64!!", "YWJj", "e30"} {
			_, err := DecodeCursor(token)
			assert.True(t, errors.Is(err, ErrValidation), "token %q", token)
		}
	})
}

func TestListQueryNormalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		q := ListQuery{}
		require.NoError(t, q.Normalize(10, 100))
		assert.Equal(t, SortCreatedAt, q.Sort)
		assert.Equal(t, OrderDesc, q.Order)
		assert.Equal(t, 10, q.Limit)
	})

	t.Run("filename sort defaults ascending", func(t *testing.T) {
		q := ListQuery{Sort: SortFilename}
		require.NoError(t, q.Normalize(10, 100))
		assert.Equal(t, OrderAsc, q.Order)
	})

	t.Run("limit clamped to max", func(t *testing.T) {
		q := ListQuery{Limit: 5000}
		require.NoError(t, q.Normalize(10, 100))
		assert.Equal(t, 100, q.Limit)
	})

	t.Run("unknown sort rejected", func(t *testing.T) {
		q := ListQuery{Sort: "size"}
		assert.True(t, errors.Is(q.Normalize(10, 100), ErrValidation))
	})

	t.Run("unknown order rejected", func(t *testing.T) {
		q := ListQuery{Order: "sideways"}
		assert.True(t, errors.Is(q.Normalize(10, 100), ErrValidation))
	})
}

func TestSortKeyOrdersSubSecondTimestamps(t *testing.T) {
	base := time.Date(2023, 7, 14, 10, 0, 0, 0, time.UTC)

	// trailing-zero fractions are the trap: a truncating render makes
	// .1Z compare greater than .15Z
	times := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(150 * time.Millisecond),
		base.Add(time.Second),
	}

	for i := 1; i < len(times); i++ {
		earlier := SortKey(&ImageRecord{CreatedAt: times[i-1]}, SortCreatedAt)
		later := SortKey(&ImageRecord{CreatedAt: times[i]}, SortCreatedAt)
		assert.Less(t, earlier, later, "key for %v must sort before %v", times[i-1], times[i])
	}

	t.Run("key stays parseable for the sql cursor path", func(t *testing.T) {
		at := base.Add(100 * time.Millisecond)
		key := SortKey(&ImageRecord{CreatedAt: at}, SortCreatedAt)
		parsed, err := time.Parse(time.RFC3339Nano, key)
		require.NoError(t, err)
		assert.True(t, parsed.Equal(at))
	})
}

func TestLessOrdersSubSecondTimestamps(t *testing.T) {
	base := time.Date(2023, 7, 14, 10, 0, 0, 0, time.UTC)
	a := &ImageRecord{ID: "a", CreatedAt: base.Add(100 * time.Millisecond)}
	b := &ImageRecord{ID: "b", CreatedAt: base.Add(150 * time.Millisecond)}

	assert.True(t, Less(a, b, SortCreatedAt, OrderAsc))
	assert.False(t, Less(b, a, SortCreatedAt, OrderAsc))
	assert.True(t, Less(b, a, SortCreatedAt, OrderDesc))

	cursor := CursorFor(a, SortCreatedAt)
	assert.True(t, After(b, cursor, SortCreatedAt, OrderAsc))
	assert.False(t, After(b, cursor, SortCreatedAt, OrderDesc))
}

func TestLessBreaksTiesByID(t *testing.T) {
	at := time.Date(2023, 7, 14, 10, 0, 0, 0, time.UTC)
	a := &ImageRecord{ID: "a", Filename: "same.png", CreatedAt: at}
	b := &ImageRecord{ID: "b", Filename: "same.png", CreatedAt: at}

	for _, order := range []SortOrder{OrderAsc, OrderDesc} {
		assert.True(t, Less(a, b, SortFilename, order), "id tiebreak is ascending regardless of order")
		assert.False(t, Less(b, a, SortFilename, order))
	}
}

func TestAfterCursor(t *testing.T) {
	at := time.Date(2023, 7, 14, 10, 0, 0, 0, time.UTC)
	first := &ImageRecord{ID: "a", Filename: "a.png", CreatedAt: at}
	second := &ImageRecord{ID: "b", Filename: "b.png", CreatedAt: at.Add(time.Minute)}

	cursor := CursorFor(first, SortCreatedAt)
	assert.True(t, After(second, cursor, SortCreatedAt, OrderAsc))
	assert.False(t, After(first, cursor, SortCreatedAt, OrderAsc), "cursor position itself is excluded")
	assert.False(t, After(second, cursor, SortCreatedAt, OrderDesc))

	t.Run("tie resolved by id", func(t *testing.T) {
		twin := &ImageRecord{ID: "b", Filename: "a.png", CreatedAt: at}
		assert.True(t, After(twin, cursor, SortCreatedAt, OrderAsc))
		assert.True(t, After(twin, cursor, SortCreatedAt, OrderDesc))
	})
}

func TestListFilterMatches(t *testing.T) {
	from := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	rec := &ImageRecord{
		ID:         "img-1",
		OwnerID:    "alice",
		Filename:   "Vacation-Beach.jpg",
		Tags:       []string{"travel", "summer"},
		Visibility: VisibilityPublic,
		CreatedAt:  time.Date(2023, 7, 14, 12, 0, 0, 0, time.UTC),
	}

	assert.True(t, ListFilter{}.Matches(rec))
	assert.True(t, ListFilter{OwnerID: "alice", Tag: "travel", Visibility: VisibilityPublic}.Matches(rec))
	assert.True(t, ListFilter{Filename: "beach"}.Matches(rec), "filename match is a case-insensitive substring")
	assert.True(t, ListFilter{DateFrom: &from, DateTo: &to}.Matches(rec))

	assert.False(t, ListFilter{OwnerID: "bob"}.Matches(rec))
	assert.False(t, ListFilter{Tag: "winter"}.Matches(rec))
	assert.False(t, ListFilter{Visibility: VisibilityPrivate}.Matches(rec))
	assert.False(t, ListFilter{Filename: "mountain"}.Matches(rec))
	assert.False(t, ListFilter{DateTo: &from}.Matches(rec))
	assert.False(t, ListFilter{DateFrom: &to}.Matches(rec))
}
