package view

// PageSizes are the permitted page sizes, smallest first.
var PageSizes = []int{20, 50, 100}

// DefaultPageSize is used when the caller asks for a size outside PageSizes.
const DefaultPageSize = 20

// NormalizePageSize maps any requested size onto the permitted set.
func NormalizePageSize(size int) int {
	for _, s := range PageSizes {
		if size == s {
			return size
		}
	}
	return DefaultPageSize
}

// Page is one slice of a filtered video list.
type Page struct {
	Items      []Video
	Number     int
	Size       int
	TotalItems int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Paginate slices videos into the requested page. The slice bounds are
// clamped to the list, so a page past the end comes back empty rather
// than panicking; callers disable navigation at the boundaries instead
// of being moved to a different page.
func Paginate(videos []Video, number, size int) Page {
	size = NormalizePageSize(size)
	if number < 1 {
		number = 1
	}

	total := len(videos)
	totalPages := (total + size - 1) / size

	start := (number - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return Page{
		Items:      videos[start:end],
		Number:     number,
		Size:       size,
		TotalItems: total,
		TotalPages: totalPages,
		HasPrev:    number > 1,
		HasNext:    number < totalPages,
	}
}
