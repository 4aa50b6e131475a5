package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortFilename  SortField = "filename"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ListFilter holds the optional filters of a listing request. Zero
// values mean "not filtered"; provided filters combine with AND.
type ListFilter struct {
	OwnerID    string
	Tag        string
	Visibility Visibility
	Filename   string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// ListQuery is the normalized input of the query engine. The cursor is
// keyset-based: it encodes the sort key and id of the last returned
// item, so pages stay stable under concurrent inserts.
type ListQuery struct {
	Filter ListFilter
	Sort   SortField
	Order  SortOrder
	Limit  int
	Cursor *Cursor
}

// Normalize applies defaults and clamps the limit. It returns an error
// for unknown sort fields or orders.
func (q *ListQuery) Normalize(defaultLimit, maxLimit int) error {
	if q.Sort == "" {
		q.Sort = SortCreatedAt
	}
	if q.Sort != SortCreatedAt && q.Sort != SortFilename {
		return fmt.Errorf("%w: unknown sort field %q", ErrValidation, q.Sort)
	}
	if q.Order == "" {
		if q.Sort == SortCreatedAt {
			q.Order = OrderDesc
		} else {
			q.Order = OrderAsc
		}
	}
	if q.Order != OrderAsc && q.Order != OrderDesc {
		return fmt.Errorf("%w: unknown sort order %q", ErrValidation, q.Order)
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// Cursor marks a position in the sorted result sequence.
type Cursor struct {
	Key string `json:"k"`
	ID  string `json:"id"`
}

func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed pagination token", ErrValidation)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
		return nil, fmt.Errorf("%w: malformed pagination token", ErrValidation)
	}
	return &c, nil
}

// CursorFor builds the cursor pointing just past rec under the given
// sort field.
func CursorFor(rec *ImageRecord, sort SortField) *Cursor {
	return &Cursor{Key: SortKey(rec, sort), ID: rec.ID}
}

// sortKeyTimeLayout is RFC3339 with a fixed-width nanosecond fraction.
// RFC3339Nano drops trailing zeros, which breaks lexicographic time
// ordering ("...00.1Z" > "...00.15Z"); the padded form keeps string
// comparison equal to time comparison and still parses as RFC3339Nano.
const sortKeyTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SortKey renders the record's sort key as a string that compares
// lexicographically in sort-field order.
func SortKey(rec *ImageRecord, sort SortField) string {
	if sort == SortFilename {
		return rec.Filename
	}
	return rec.CreatedAt.UTC().Format(sortKeyTimeLayout)
}

// Matches reports whether rec passes every provided filter.
func (f ListFilter) Matches(rec *ImageRecord) bool {
	if f.OwnerID != "" && rec.OwnerID != f.OwnerID {
		return false
	}
	if f.Visibility != "" && rec.Visibility != f.Visibility {
		return false
	}
	if f.Filename != "" && !strings.Contains(strings.ToLower(rec.Filename), strings.ToLower(f.Filename)) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range rec.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DateFrom != nil && rec.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && rec.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

// Less orders two records under the query's sort; ties always break by
// id ascending so the order is total and pagination is stable.
func Less(a, b *ImageRecord, sort SortField, order SortOrder) bool {
	ka, kb := SortKey(a, sort), SortKey(b, sort)
	if ka != kb {
		if order == OrderDesc {
			return ka > kb
		}
		return ka < kb
	}
	return a.ID < b.ID
}

// After reports whether rec sits strictly past the cursor position in
// the sorted sequence.
func After(rec *ImageRecord, c *Cursor, sort SortField, order SortOrder) bool {
	if c == nil {
		return true
	}
	key := SortKey(rec, sort)
	if key != c.Key {
		if order == OrderDesc {
			return key < c.Key
		}
		return key > c.Key
	}
	return rec.ID > c.ID
}
