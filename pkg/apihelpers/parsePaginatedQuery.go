package apihelpers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginatedQuery struct {
	Page  int64
	Limit int64
}

// ParsePaginatedQueryFromCtx reads the page and limit query parameters. The limit is capped at MaxPageSize.
func ParsePaginatedQueryFromCtx(c *gin.Context) (*PaginatedQuery, error) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid page: %w", err)
	}
	if page < 1 {
		return nil, fmt.Errorf("invalid page: %d", page)
	}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid limit: %w", err)
	}
	if limit < 1 {
		return nil, fmt.Errorf("invalid limit: %d", limit)
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	return &PaginatedQuery{
		Page:  page,
		Limit: limit,
	}, nil
}
