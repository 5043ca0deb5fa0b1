package billing

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// WritePDF renders the projection as a one page A4 report.
func WritePDF(w io.Writer, title string, p Projection) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Day %.1f of %d (projection x%.2f)", p.DaysElapsed, p.DaysInMonth, p.Ratio), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	const labelWidth, valueWidth, rowHeight = 70.0, 40.0, 7.0

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(labelWidth, rowHeight, "", "1", 0, "L", true, 0, "")
	pdf.CellFormat(valueWidth, rowHeight, "Fixed", "1", 0, "R", true, 0, "")
	pdf.CellFormat(valueWidth, rowHeight, "Indexed", "1", 1, "R", true, 0, "")

	rows := []struct {
		label          string
		fixed, indexed float64
	}{
		{"Energy", p.Fixed.Energy, p.Indexed.Energy},
		{"Power", p.Fixed.Power, p.Indexed.Power},
		{"Electricity tax", p.Fixed.ElectricityTax, p.Indexed.ElectricityTax},
		{"Fixed charges", p.Fixed.FixedCharges, p.Indexed.FixedCharges},
		{"Subtotal", p.Fixed.Subtotal, p.Indexed.Subtotal},
		{"VAT", p.Fixed.VAT, p.Indexed.VAT},
		{"Total", p.Fixed.Total, p.Indexed.Total},
		{"Injection compensation", -p.Fixed.Compensation, -p.Indexed.Compensation},
		{"Net", p.Fixed.Net, p.Indexed.Net},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.CellFormat(labelWidth, rowHeight, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, rowHeight, formatEUR(row.fixed), "1", 0, "R", false, 0, "")
		pdf.CellFormat(valueWidth, rowHeight, formatEUR(row.indexed), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Annual net: fixed %s, indexed %s", formatEUR(p.AnnualFixed), formatEUR(p.AnnualIndexed)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Annual saving with indexed tariff: %s", formatEUR(p.AnnualSaving)), "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render bill pdf: %w", err)
	}
	return nil
}

func formatEUR(v float64) string {
	return fmt.Sprintf("%.2f EUR", v)
}
