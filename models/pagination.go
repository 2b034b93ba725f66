package models

import (
	"encoding/base64"

	"gorm.io/gorm"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

type Cursor interface {
	GetCursor() string
}

// Page is one slice of a keyset-paginated list.
type Page[T any] struct {
	Items    []*T     `json:"items"`
	PageInfo PageInfo `json:"pageInfo"`
}

func DecodeCursor(cursor *string) (string, error) {
	decodedCursor := ""
	if cursor != nil {
		b, err := base64.StdEncoding.DecodeString(*cursor)
		if err != nil {
			return decodedCursor, err
		}
		decodedCursor = string(b)
	}
	return decodedCursor, nil
}

func EncodeCursor(cursor string) string {
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

// FetchPageCursor reads limit rows after the cursor, ascending on cursorColumn.
func FetchPageCursor[T Cursor](dbCtx *gorm.DB, limit int, after *string, cursorColumn string) (*Page[T], error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	decodedCursor, err := DecodeCursor(after)
	if err != nil {
		return nil, err
	}
	if decodedCursor != "" {
		dbCtx = dbCtx.Where(cursorColumn+" > ?", decodedCursor)
	}

	nodes := make([]*T, 0, limit+1)
	if err = dbCtx.Order(cursorColumn).Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	page := Page[T]{Items: nodes}
	if len(nodes) > limit {
		page.Items = nodes[:limit]
		page.PageInfo.HasNextPage = true
	}
	if n := len(page.Items); n > 0 {
		page.PageInfo.StartCursor = EncodeCursor((*page.Items[0]).GetCursor())
		page.PageInfo.EndCursor = EncodeCursor((*page.Items[n-1]).GetCursor())
	}
	return &page, nil
}
