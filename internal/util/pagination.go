package util

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Paginate converts 1-based page/size query values into an offset and
// limit. Out-of-range sizes fall back to defaultPageSize; pages below 1
// read as the first page.
func Paginate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return (page - 1) * size, size
}
