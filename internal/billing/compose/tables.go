package compose

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/medicore/medicore/internal/billing/compose/layout"
)

func summaryColumns() []layout.Column {
	return []layout.Column{
		{Key: "name", Title: "Item", Width: 86, Min: 40, Align: "L", Shrink: 0},
		{Key: "type", Title: "Category", Width: 34, Min: 24, Align: "L", Shrink: 1},
		{Key: "qty", Title: "Qty", Width: 18, Min: 12, Align: "R", Shrink: 1},
		{Key: "rate", Title: "Rate", Width: 24, Min: 18, Align: "R", Shrink: 1},
		{Key: "amount", Title: "Amount", Width: 24, Min: 20, Align: "R", Shrink: 2},
	}
}

func breakupColumns() []layout.Column {
	return []layout.Column{
		{Key: "name", Title: "Description", Width: 120, Min: 50, Align: "L", Shrink: 0},
		{Key: "qty", Title: "Qty", Width: 18, Min: 12, Align: "R", Shrink: 1},
		{Key: "rate", Title: "Rate", Width: 24, Min: 18, Align: "R", Shrink: 1},
		{Key: "amount", Title: "Amount", Width: 24, Min: 20, Align: "R", Shrink: 2},
	}
}

func truncateCell(pdf *gofpdf.Fpdf, text string, avail float64) string {
	return layout.Truncate(func(s string) float64 {
		return pdf.GetStringWidth(s)
	}, text, avail)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func drawTableHeader(pdf *gofpdf.Fpdf, cols []layout.Column) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	for _, col := range cols {
		pdf.CellFormat(col.Width, rowHeight, col.Title, "1", 0, col.Align, true, 0, "")
	}
	pdf.Ln(-1)
}

func drawRow(pdf *gofpdf.Fpdf, cols []layout.Column, values map[string]string) {
	pdf.SetFont("Arial", "", 9)
	for _, col := range cols {
		text := truncateCell(pdf, values[col.Key], col.Width-2)
		pdf.CellFormat(col.Width, rowHeight, text, "1", 0, col.Align, false, 0, "")
	}
	pdf.Ln(-1)
}

func drawSummaryTable(pdf *gofpdf.Fpdf, items []Item, collapse bool) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Summary of Charges", "", 1, "L", false, 0, "")

	cols := layout.FitColumns(summaryColumns(), contentWidth)
	drawTableHeader(pdf, cols)

	if collapse {
		for _, category := range breakupOrder {
			var sum float64
			var count int
			for _, item := range items {
				if item.Category == category {
					sum += item.Total
					count++
				}
			}
			if count == 0 {
				continue
			}
			drawRow(pdf, cols, map[string]string{
				"name":   category.Label(),
				"type":   string(category),
				"qty":    fmt.Sprintf("%d", count),
				"rate":   "",
				"amount": money(sum),
			})
		}
	} else {
		for _, item := range items {
			drawRow(pdf, cols, map[string]string{
				"name":   item.Name,
				"type":   string(item.Category),
				"qty":    trimQty(item.Quantity),
				"rate":   money(item.UnitPrice),
				"amount": money(item.Total),
			})
		}
	}
	pdf.Ln(4)
}

func drawDetailedBreakup(pdf *gofpdf.Fpdf, items []Item) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Detailed Breakup", "", 1, "L", false, 0, "")

	cols := layout.FitColumns(breakupColumns(), contentWidth)
	drawTableHeader(pdf, cols)

	tableWidth := 0.0
	for _, col := range cols {
		tableWidth += col.Width
	}

	for _, category := range breakupOrder {
		group := make([]Item, 0, len(items))
		for _, item := range items {
			if item.Category == category {
				group = append(group, item)
			}
		}
		if len(group) == 0 {
			continue
		}

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(246, 246, 246)
		pdf.CellFormat(tableWidth, rowHeight, category.Label(), "1", 1, "L", true, 0, "")

		var subtotal float64
		for _, item := range group {
			name := item.Name
			if item.Description != "" {
				name += " - " + item.Description
			}
			drawRow(pdf, cols, map[string]string{
				"name":   name,
				"qty":    trimQty(item.Quantity),
				"rate":   money(item.UnitPrice),
				"amount": money(item.Total),
			})
			subtotal += item.Total
		}

		pdf.SetFont("Arial", "B", 9)
		last := cols[len(cols)-1]
		pdf.CellFormat(tableWidth-last.Width, rowHeight, "Subtotal - "+category.Label(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(last.Width, rowHeight, money(subtotal), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

// drawTotalsPanel renders the three visual tiers: normal rows (subtotal,
// discount, tax), the highlighted payable row, and the emphasized balance.
func drawTotalsPanel(pdf *gofpdf.Fpdf, totals Totals) {
	labelWidth := 60.0
	valueWidth := 32.0
	x := pageWidth - marginRight - labelWidth - valueWidth

	row := func(label, value string, style string, fill bool) {
		pdf.SetX(x)
		pdf.SetFont("Arial", style, 9.5)
		pdf.CellFormat(labelWidth, 6.5, label, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(valueWidth, 6.5, value, "1", 1, "R", fill, 0, "")
	}

	pdf.SetFillColor(255, 255, 255)
	row("Subtotal", money(totals.Subtotal), "", false)
	if totals.DiscountAmount > 0 {
		label := "Discount"
		if totals.DiscountLabel != "" {
			label += " (" + totals.DiscountLabel + ")"
		}
		row(label, "-"+money(totals.DiscountAmount), "", false)
	}
	if totals.TaxAmount > 0 {
		label := "Tax"
		if totals.TaxLabel != "" {
			label += " (" + totals.TaxLabel + ")"
		}
		row(label, money(totals.TaxAmount), "", false)
	}

	pdf.SetFillColor(230, 238, 248)
	row("Amount Payable", money(totals.Payable), "B", true)
	if totals.Paid > 0 {
		pdf.SetFillColor(255, 255, 255)
		row("Paid", money(totals.Paid), "", false)
	}

	pdf.SetFillColor(210, 226, 244)
	pdf.SetFont("Arial", "B", 11)
	pdf.SetX(x)
	pdf.CellFormat(labelWidth, 8, "Balance Due", "1", 0, "L", true, 0, "")
	pdf.CellFormat(valueWidth, 8, money(totals.Balance), "1", 1, "R", true, 0, "")
	pdf.Ln(2)
}

func trimQty(qty float64) string {
	if qty == float64(int64(qty)) {
		return fmt.Sprintf("%d", int64(qty))
	}
	return fmt.Sprintf("%.2f", qty)
}
