package browse

import "github.com/otcheredev/ris-study-browser/internal/models"

// DefaultPageSize is used when a session does not choose one
const DefaultPageSize = 20

// PageView is one page of the filtered subset
type PageView struct {
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
	TotalStudies int            `json:"total_studies"`
	Studies      []models.Study `json:"studies"`
}

// TotalPages reports how many pages the subset spans. Never below 1, even
// for an empty subset, so page arithmetic stays well-defined.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate slices the filtered subset into the requested page. A page beyond
// the recomputed bounds is clamped back to 1, never left dangling.
func Paginate(filtered []models.Study, page, pageSize int) PageView {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	totalPages := TotalPages(len(filtered), pageSize)
	if page < 1 || page > totalPages {
		page = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return PageView{
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		TotalStudies: len(filtered),
		Studies:      filtered[start:end],
	}
}
