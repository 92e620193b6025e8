package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=20" binding:"gte=1,lte=250"`
}

type Cursor struct {
	CreatedAt string `json:"created_at,omitempty"`
	ID        string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Page trims the extra row fetched by option.ApplyPagination and builds the
// cursor of the last row kept.
func Page[T any](data []*T, limit int, key func(*T) (time.Time, string)) ([]*T, *PageInfo) {
	if limit <= 0 {
		limit = 20
	}
	if len(data) == 0 {
		return data, &PageInfo{}
	}

	info := &PageInfo{}
	if len(data) > limit {
		info.HasMore = true
		data = data[:limit]
	}

	if info.HasMore {
		createdAt, id := key(data[len(data)-1])
		info.NextCursor, _ = EncodeCursor(Cursor{CreatedAt: createdAt.UTC().Format(time.RFC3339Nano), ID: id})
	}

	return data, info
}
