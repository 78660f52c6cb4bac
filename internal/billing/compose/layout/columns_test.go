package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleColumns() []Column {
	return []Column{
		{Key: "date", Title: "Date", Width: 25, Min: 20, Shrink: 2},
		{Key: "desc", Title: "Description", Width: 80, Min: 30, Shrink: 0},
		{Key: "qty", Title: "Qty", Width: 20, Min: 12, Shrink: 1},
		{Key: "amount", Title: "Amount", Width: 30, Min: 22, Shrink: 1},
	}
}

func widths(cols []Column) []float64 {
	out := make([]float64, len(cols))
	for i, c := range cols {
		out[i] = c.Width
	}
	return out
}

func TestFitColumns_NoShrinkWhenItFits(t *testing.T) {
	cols := sampleColumns()
	fitted := FitColumns(cols, 200)

	assert.Equal(t, widths(cols), widths(fitted))
}

func TestFitColumns_FreeTextColumnLosesFirst(t *testing.T) {
	cols := sampleColumns()
	// 10 units over: all of it should come out of the description column.
	fitted := FitColumns(cols, 145)

	assert.Equal(t, 70.0, fitted[1].Width)
	assert.Equal(t, 25.0, fitted[0].Width)
	assert.Equal(t, 20.0, fitted[2].Width)
	assert.Equal(t, 30.0, fitted[3].Width)
	assert.LessOrEqual(t, total(fitted), 145.0)
}

func TestFitColumns_SpillsToNextPriority(t *testing.T) {
	cols := sampleColumns()
	// Needs 60 units: description gives its full 50, qty gives the rest.
	fitted := FitColumns(cols, 95)

	assert.Equal(t, 30.0, fitted[1].Width)
	assert.Equal(t, 12.0, fitted[2].Width)
	assert.LessOrEqual(t, total(fitted), 95.0)
}

func TestFitColumns_TerminatesAtFloor(t *testing.T) {
	cols := sampleColumns()
	// Minimums sum to 84; an impossible target leaves every column at its
	// minimum instead of looping forever.
	fitted := FitColumns(cols, 10)

	for i, c := range fitted {
		assert.Equal(t, c.Min, c.Width, "column %d should sit at its minimum", i)
	}
}

func TestFitColumns_DoesNotMutateInput(t *testing.T) {
	cols := sampleColumns()
	before := widths(cols)
	_ = FitColumns(cols, 10)

	assert.Equal(t, before, widths(cols))
}

func TestFitColumns_Deterministic(t *testing.T) {
	a := FitColumns(sampleColumns(), 120)
	b := FitColumns(sampleColumns(), 120)

	assert.Equal(t, widths(a), widths(b))
}

func TestFitColumns_FractionalFloor(t *testing.T) {
	cols := []Column{
		{Key: "a", Width: 10.5, Min: 10.2, Shrink: 0},
		{Key: "b", Width: 10, Min: 10, Shrink: 1},
	}
	fitted := FitColumns(cols, 5)

	assert.Equal(t, 10.2, fitted[0].Width)
	assert.Equal(t, 10.0, fitted[1].Width)
}
