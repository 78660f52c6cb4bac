package layout

const ellipsis = "..."

// WidthFunc measures the rendered width of a string in document units for
// the currently selected font.
type WidthFunc func(s string) float64

// Truncate fits text into avail width. Oversized text loses one trailing
// character at a time, keeping a three-character ellipsis suffix. When no
// prefix at all fits, the first three raw characters plus the ellipsis are
// returned regardless of overflow; the cell never ends up empty and this
// function never fails.
func Truncate(width WidthFunc, text string, avail float64) string {
	if text == "" {
		return text
	}
	if width(text) <= avail {
		return text
	}

	runes := []rune(text)
	for n := len(runes) - 1; n >= 1; n-- {
		candidate := string(runes[:n]) + ellipsis
		if width(candidate) <= avail {
			return candidate
		}
	}

	if len(runes) < 3 {
		return string(runes) + ellipsis
	}
	return string(runes[:3]) + ellipsis
}
