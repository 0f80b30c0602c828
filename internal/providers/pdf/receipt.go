package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	IssuerName    string
	InvoiceNumber string
	AccessCode    string
	IssueDate     string
	Status        string

	BillToName  string
	BillToEmail string

	CourseTitle string
	AccessURL   string
	Total       string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	if receipt.InvoiceNumber == "" {
		return nil, fmt.Errorf("receipt requires an invoice number")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, receipt.Status, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+receipt.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+receipt.IssueDate, props.Text{Top: 4}),
			text.New("Access code: "+receipt.AccessCode, props.Text{Top: 8, Style: fontstyle.Bold}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New(receipt.IssuerName, props.Text{Style: fontstyle.Bold}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(receipt.BillToName, props.Text{Top: 5}),
			text.New(receipt.BillToEmail, props.Text{Top: 9}),
		),
	)

	m.AddRow(10,
		text.NewCol(10, "Course", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(15,
		text.NewCol(10, receipt.CourseTitle, props.Text{Size: 9}),
		text.NewCol(2, receipt.Total, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total paid", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, receipt.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if receipt.AccessURL != "" {
		m.AddRow(15,
			text.NewCol(12, "Start learning: "+receipt.AccessURL, props.Text{Size: 9, Top: 5}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
