package queryfilter

// Page size bounds. The default matches the reference list views.
const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// DefaultPage returns the first page at the default size.
func DefaultPage() Page {
	return Page{Number: 1, Size: DefaultPageSize}
}

// Clamp normalizes the page to valid bounds: number >= 1,
// 1 <= size <= MaxPageSize (zero size becomes the default).
func (p Page) Clamp() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if p.Size < 1 {
		p.Size = 1
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// LimitOffset returns the SQL LIMIT and OFFSET values for the page.
func (p Page) LimitOffset() (limit, offset int) {
	p = p.Clamp()
	return p.Size, (p.Number - 1) * p.Size
}

// PageInfo describes one page of a filtered result set.
type PageInfo struct {
	Number      int   `json:"page"`
	Size        int   `json:"page_size"`
	PageCount   int   `json:"page_count"`
	ResultCount int64 `json:"result_count"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// NewPageInfo computes page metadata from the request and the total row
// count of the filtered set. An empty result still reports one page.
func NewPageInfo(p Page, total int64) PageInfo {
	p = p.Clamp()
	pageCount := int((total + int64(p.Size) - 1) / int64(p.Size))
	if pageCount < 1 {
		pageCount = 1
	}
	return PageInfo{
		Number:      p.Number,
		Size:        p.Size,
		PageCount:   pageCount,
		ResultCount: total,
		HasNext:     p.Number < pageCount,
		HasPrevious: p.Number > 1,
	}
}
