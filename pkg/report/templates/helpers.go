package templates

func scoreClass(value int) string {
	switch {
	case value >= 80:
		return "good"
	case value >= 50:
		return "fair"
	default:
		return "poor"
	}
}
