// Package compose renders the invoice document. Composing is a pure
// function of its input: no mutable external state, safe to run
// concurrently for different invoices.
package compose

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Category groups line items in the detailed breakup.
type Category string

const (
	CategoryRoom       Category = "room"
	CategoryMedication Category = "medication"
	CategoryLab        Category = "lab"
	CategoryOther      Category = "other"
)

// breakupOrder is the fixed section order of the detailed breakup table.
var breakupOrder = []Category{CategoryRoom, CategoryMedication, CategoryLab, CategoryOther}

// Label is the printed group header for the category.
func (c Category) Label() string {
	switch c {
	case CategoryRoom:
		return "Room/Bed Charges"
	case CategoryMedication:
		return "Medication Charges"
	case CategoryLab:
		return "Lab Charges"
	default:
		return "Other"
	}
}

// Identity is the hospital branding block.
type Identity struct {
	Name     string
	Address  string
	Phone    string
	Email    string
	LogoPath string
	Footer   string
}

// Patient is the patient/admission fact block.
type Patient struct {
	Name            string
	Gender          string
	DateOfBirth     *time.Time
	Address         string
	AdmissionNumber string
	RoomLabel       string
	BedLabel        string
	Clinician       string
	AdmittedAt      time.Time
}

// Item is one renderable invoice line.
type Item struct {
	Category    Category
	Name        string
	Description string
	Quantity    float64
	UnitPrice   float64
	Total       float64
}

// Totals feeds the three-tier totals panel. All values are expected to be
// display-rounded already.
type Totals struct {
	Subtotal       float64
	DiscountLabel  string
	DiscountAmount float64
	TaxLabel       string
	TaxAmount      float64
	Payable        float64
	Paid           float64
	Balance        float64
}

// NarrativeSection is one titled free-text block on the optional
// clinical-summary page.
type NarrativeSection struct {
	Title string
	Body  string
}

// Input is everything the composer needs for one document.
type Input struct {
	Identity      Identity
	Patient       Patient
	InvoiceNumber string
	BillDate      time.Time
	Items         []Item
	Totals        Totals
	GeneratedAt   time.Time
}

// Options toggle optional document features.
type Options struct {
	CollapseSummary bool
	Narrative       []NarrativeSection
}

const (
	pageWidth     = 210.0
	pageHeight    = 297.0
	marginLeft    = 12.0
	marginTop     = 12.0
	marginRight   = 12.0
	contentWidth  = pageWidth - marginLeft - marginRight
	rowHeight     = 7.0
	minFooterRoom = 22.0
	footerOffset  = 18.0
)

// Compose renders the full invoice document and returns the finished PDF
// bytes. It either returns a complete document or an error, never a
// partial one.
func Compose(input Input, opts Options) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	if !input.GeneratedAt.IsZero() {
		// Pin the embedded creation date so composing stays a pure function
		// of its input.
		pdf.SetCreationDate(input.GeneratedAt)
	}
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginTop)
	pdf.AddPage()

	drawHeader(pdf, input.Identity)
	drawPatientBlock(pdf, input)
	drawSummaryTable(pdf, input.Items, opts.CollapseSummary)
	drawDetailedBreakup(pdf, input.Items)
	drawTotalsPanel(pdf, input.Totals)
	drawFooter(pdf, input.Identity.Footer, input.GeneratedAt)

	if len(opts.Narrative) > 0 {
		drawNarrativePage(pdf, opts.Narrative)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("compose invoice %s: %w", input.InvoiceNumber, pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("compose invoice %s: %w", input.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func drawHeader(pdf *gofpdf.Fpdf, id Identity) {
	if id.LogoPath != "" {
		pdf.ImageOptions(id.LogoPath, marginLeft, marginTop, 24, 0, false,
			gofpdf.ImageOptions{ReadDpi: true}, 0, "")
		pdf.SetX(marginLeft + 28)
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, id.Name, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	if id.LogoPath != "" {
		pdf.SetX(marginLeft + 28)
	}
	if id.Address != "" {
		pdf.CellFormat(0, 4.5, id.Address, "", 1, "L", false, 0, "")
	}
	contact := id.Phone
	if id.Email != "" {
		if contact != "" {
			contact += "  |  "
		}
		contact += id.Email
	}
	if contact != "" {
		if id.LogoPath != "" {
			pdf.SetX(marginLeft + 28)
		}
		pdf.CellFormat(0, 4.5, contact, "", 1, "L", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetDrawColor(60, 60, 60)
	pdf.Line(marginLeft, pdf.GetY(), pageWidth-marginRight, pdf.GetY())
	pdf.Ln(4)
}

func drawPatientBlock(pdf *gofpdf.Fpdf, input Input) {
	p := input.Patient

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 7, "Invoice "+input.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.Ln(1)

	left := [][2]string{
		{"Patient", p.Name},
		{"Age / Gender", ageGender(p.DateOfBirth, p.Gender, input.BillDate)},
		{"Address", p.Address},
	}
	right := [][2]string{
		{"Admission No", p.AdmissionNumber},
		{"Bill Date", input.BillDate.Format("02 Jan 2006")},
		{"Room / Bed", roomBed(p.RoomLabel, p.BedLabel)},
		{"Attending", p.Clinician},
	}

	colWidth := contentWidth / 2
	startY := pdf.GetY()
	drawFactColumn(pdf, marginLeft, startY, colWidth, left)
	leftEnd := pdf.GetY()
	drawFactColumn(pdf, marginLeft+colWidth, startY, colWidth, right)
	if leftEnd > pdf.GetY() {
		pdf.SetY(leftEnd)
	}
	pdf.Ln(4)
}

func drawFactColumn(pdf *gofpdf.Fpdf, x, y, width float64, facts [][2]string) {
	labelWidth := 30.0
	pdf.SetXY(x, y)
	for _, fact := range facts {
		if fact[1] == "" {
			continue
		}
		pdf.SetX(x)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(labelWidth, 5, fact[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		value := truncateCell(pdf, fact[1], width-labelWidth-2)
		pdf.CellFormat(width-labelWidth, 5, value, "", 1, "L", false, 0, "")
	}
}

func ageGender(dob *time.Time, gender string, at time.Time) string {
	if dob == nil {
		return gender
	}
	years := at.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if gender == "" {
		return fmt.Sprintf("%d yrs", years)
	}
	return fmt.Sprintf("%d yrs / %s", years, gender)
}

func roomBed(room, bed string) string {
	if room == "" {
		return bed
	}
	if bed == "" {
		return room
	}
	return room + " / " + bed
}

func drawFooter(pdf *gofpdf.Fpdf, disclaimer string, generatedAt time.Time) {
	y := pdf.GetY() + 6
	// Crowd the footer onto the page rather than spilling to a new one; a
	// page break only happens for explicit section breaks.
	if pageHeight-y < minFooterRoom {
		y = pageHeight - footerOffset
	}
	pdf.SetY(y)

	pdf.SetDrawColor(150, 150, 150)
	pdf.Line(marginLeft, y, pageWidth-marginRight, y)
	pdf.Ln(2)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(100, 100, 100)
	if disclaimer != "" {
		pdf.CellFormat(0, 4, disclaimer, "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 4, "Generated on "+generatedAt.Format("02 Jan 2006 15:04 MST"), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func drawNarrativePage(pdf *gofpdf.Fpdf, sections []NarrativeSection) {
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "Clinical Summary", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, section := range sections {
		if section.Title != "" {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(0, 6, section.Title, "", 1, "L", false, 0, "")
		}
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 4.5, section.Body, "", "L", false)
		pdf.Ln(3)
	}
}
