// Package layout holds the pure table-geometry logic behind the invoice
// document: column width fitting and cell text truncation.
package layout

// Column describes one table column. Width and Min are in document units
// (mm). Shrink is the priority with which the column gives up width when the
// table must narrow: lower values shrink first. Free-text columns typically
// take priority 0, secondary numeric columns follow, date/code columns last.
type Column struct {
	Key    string
	Title  string
	Width  float64
	Min    float64
	Align  string
	Shrink int
}

// FitColumns narrows cols until their widths sum to at most target.
// Width is taken one unit at a time from the lowest-Shrink column still
// above its minimum. If every column is at its minimum and the sum still
// exceeds target, the layout is returned as-is: overflowing is preferred
// over breaking a column's readability floor. The input slice is not
// modified.
func FitColumns(cols []Column, target float64) []Column {
	out := make([]Column, len(cols))
	copy(out, cols)

	if target <= 0 {
		return out
	}

	order := shrinkOrder(out)
	const step = 1.0

	for total(out) > target {
		shrunk := false
		for _, i := range order {
			if out[i].Width-step >= out[i].Min {
				out[i].Width -= step
				shrunk = true
				break
			}
			if out[i].Width > out[i].Min {
				out[i].Width = out[i].Min
				shrunk = true
				break
			}
		}
		if !shrunk {
			break
		}
	}

	return out
}

func total(cols []Column) float64 {
	var sum float64
	for _, c := range cols {
		sum += c.Width
	}
	return sum
}

// shrinkOrder returns column indexes sorted by Shrink priority, stable for
// equal priorities so the layout stays deterministic.
func shrinkOrder(cols []Column) []int {
	order := make([]int, len(cols))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && cols[order[j-1]].Shrink > cols[order[j]].Shrink; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
	return order
}
