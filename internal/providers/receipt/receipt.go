// Package receipt renders the payment receipt handed out after a payment
// is recorded against an invoice.
package receipt

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type Data struct {
	HospitalName    string
	HospitalAddress string
	HospitalEmail   string
	LogoPath        string

	InvoiceNumber string
	PatientName   string
	AdmissionNo   string

	AmountPaid string
	DatePaid   string
	Balance    string
	Note       string
}

type Generator struct{}

func New() *Generator { return &Generator{} }

// Generate renders the receipt PDF for one recorded payment.
func (g *Generator) Generate(ctx context.Context, data Data) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	if data.LogoPath != "" {
		m.AddRow(30,
			text.NewCol(6, "Payment Receipt", props.Text{
				Size:  20,
				Style: fontstyle.Bold,
				Align: align.Left,
			}),
			image.NewFromFileCol(3, data.LogoPath, props.Rect{
				Center:  false,
				Percent: 80,
				Left:    10,
			}),
		)
	} else {
		m.AddRow(30,
			text.NewCol(12, "Payment Receipt", props.Text{
				Size:  20,
				Style: fontstyle.Bold,
				Align: align.Left,
			}),
		)
	}

	m.AddRow(25,
		col.New(6).Add(
			text.New(data.HospitalName, props.Text{Style: fontstyle.Bold}),
			text.New(data.HospitalAddress, props.Text{Top: 5}),
			text.New(data.HospitalEmail, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Patient: "+data.PatientName, props.Text{Top: 0}),
			text.New("Admission: "+data.AdmissionNo, props.Text{Top: 5}),
			text.New("Invoice: "+data.InvoiceNumber, props.Text{Top: 10}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, fmt.Sprintf("%s paid on %s", data.AmountPaid, data.DatePaid), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Balance due", props.Text{Size: 9}),
		text.NewCol(2, data.Balance, props.Text{Size: 9, Align: align.Right}),
	)

	if data.Note != "" {
		m.AddRow(15,
			text.NewCol(12, data.Note, props.Text{Size: 9, Top: 4}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
