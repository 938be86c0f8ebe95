package ext

// SliceContains returns true if the specified slice contains the given value,
// false otherwise.
func SliceContains[T comparable](slice []T, value T) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}
