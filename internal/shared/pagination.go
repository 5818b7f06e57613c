package shared

import "math"

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// ListParams carries limit/offset paging from list endpoints.
type ListParams struct {
	Limit  int `json:"limit" validate:"gte=0,lte=200"`
	Offset int `json:"offset" validate:"gte=0"`
}

// Normalize applies defaults and caps the page size.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(params ListParams, total int) Pagination {
	params = params.Normalize()
	totalPages := int(math.Ceil(float64(total) / float64(params.Limit)))
	return Pagination{Limit: params.Limit, Offset: params.Offset, Total: total, TotalPages: totalPages}
}
