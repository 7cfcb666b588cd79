package weather

// Paginate slices one page out of the full candidate list. Pages are
// 1-based; page < 1 is treated as 1. HasNext is true iff the slice end is
// before the end of the list.
func Paginate(all []City, page, pageSize int) CitySearchResult {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		return CitySearchResult{Cities: []City{}}
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(all) {
		start = len(all)
	}
	sliceEnd := end
	if sliceEnd > len(all) {
		sliceEnd = len(all)
	}

	out := make([]City, sliceEnd-start)
	copy(out, all[start:sliceEnd])
	return CitySearchResult{
		Cities:  out,
		HasNext: end < len(all),
	}
}
