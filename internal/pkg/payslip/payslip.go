// Package payslip renders payroll runs as PDF payslips.
package payslip

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Line is one component row on the payslip. Amount is preformatted.
type Line struct {
	Name   string
	Type   string // earning, benefit or deduction
	Amount string
}

type Document struct {
	RunID           string
	EmployeeName    string
	Period          string
	Status          string
	ApprovedAt      string
	PaymentDate     string
	PaymentMethod   string
	Lines           []Line
	GrossSalary     string
	TotalDeductions string
	TaxAmount       string
	NetSalary       string
}

// Filename returns the attachment / download name for the document.
func (d Document) Filename() string {
	return fmt.Sprintf("payslip-%s-%s.pdf", d.Period, d.RunID)
}

var sections = []struct {
	Type  string
	Title string
}{
	{"earning", "Earnings"},
	{"benefit", "Benefits"},
	{"deduction", "Deductions"},
}

// Render produces the PDF bytes for d.
func Render(d Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Payslip %s", d.Period), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	header := [][2]string{
		{"Employee", d.EmployeeName},
		{"Period", d.Period},
		{"Status", d.Status},
	}
	if d.ApprovedAt != "" {
		header = append(header, [2]string{"Approved at", d.ApprovedAt})
	}
	if d.PaymentDate != "" {
		header = append(header, [2]string{"Payment date", d.PaymentDate})
	}
	if d.PaymentMethod != "" {
		header = append(header, [2]string{"Payment method", d.PaymentMethod})
	}
	for _, h := range header {
		pdf.CellFormat(45, 7, h[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, h[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	for _, s := range sections {
		var rows []Line
		for _, l := range d.Lines {
			if l.Type == s.Type {
				rows = append(rows, l)
			}
		}
		if len(rows) == 0 {
			continue
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, s.Title, "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, r := range rows {
			pdf.CellFormat(130, 7, r.Name, "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 7, r.Amount, "", 1, "R", false, 0, "")
		}
		pdf.Ln(3)
	}

	pdf.SetFont("Helvetica", "B", 11)
	totals := [][2]string{
		{"Gross salary", d.GrossSalary},
		{"Total deductions", d.TotalDeductions},
		{"of which income tax", d.TaxAmount},
		{"Net salary", d.NetSalary},
	}
	for _, t := range totals {
		pdf.CellFormat(130, 7, t[0], "T", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, t[1], "T", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip: %w", err)
	}
	return buf.Bytes(), nil
}
