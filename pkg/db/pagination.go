package db

type PaginationInfos struct {
	TotalCount  int64 `json:"totalCount"`
	CurrentPage int64 `json:"currentPage"`
	TotalPages  int64 `json:"totalPages"`
	PageSize    int64 `json:"pageSize"`
}

const defaultPageSize = 10

func getTotalPages(totalCount int64, limit int64) int64 {
	if limit == 0 {
		return 0
	}
	return (totalCount + limit - 1) / limit
}

// PreparePaginationInfos clamps the requested page into the available range.
func PreparePaginationInfos(totalCount int64, page int64, limit int64) *PaginationInfos {
	if limit < 1 {
		limit = defaultPageSize
	}
	totalPages := getTotalPages(totalCount, limit)
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return &PaginationInfos{
		TotalCount:  totalCount,
		CurrentPage: page,
		TotalPages:  totalPages,
		PageSize:    limit,
	}
}

// Offset is the number of documents to skip for the current page.
func (p *PaginationInfos) Offset() int64 {
	return (p.CurrentPage - 1) * p.PageSize
}
