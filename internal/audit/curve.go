package audit

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-pdf/fpdf"

	"github.com/wonny/sentiment-ls/internal/contracts"
)

// chart area on an A4 landscape page, mm
const (
	chartX = 25.0
	chartY = 30.0
	chartW = 250.0
	chartH = 150.0
)

// RenderEquityCurve draws cum_return against date as a one-page PDF
// ⭐ SSOT: 에쿼티 커브 렌더링은 여기서만
func RenderEquityCurve(w io.Writer, daily []contracts.DailyRecord, title string) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Rect(chartX, chartY, chartW, chartH, "D")

	pdf.SetFont("Helvetica", "", 9)
	if len(daily) == 0 {
		pdf.Text(chartX+chartW/2-20, chartY+chartH/2, "No eligible dates")
		return output(pdf, w)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range daily {
		lo = math.Min(lo, d.CumReturn)
		hi = math.Max(hi, d.CumReturn)
	}
	if hi == lo {
		lo, hi = lo-0.01, hi+0.01
	}

	x := func(i int) float64 {
		if len(daily) == 1 {
			return chartX + chartW/2
		}
		return chartX + chartW*float64(i)/float64(len(daily)-1)
	}
	y := func(v float64) float64 {
		return chartY + chartH - chartH*(v-lo)/(hi-lo)
	}

	// grid + y labels
	pdf.SetDrawColor(210, 210, 210)
	pdf.SetLineWidth(0.1)
	for i := 0; i <= 4; i++ {
		v := lo + (hi-lo)*float64(i)/4
		pdf.Line(chartX, y(v), chartX+chartW, y(v))
		pdf.Text(chartX-18, y(v)+1, fmt.Sprintf("%.4f", v))
	}

	// baseline at 1.0
	if lo < 1 && hi > 1 {
		pdf.SetDrawColor(150, 150, 150)
		pdf.SetDashPattern([]float64{1, 1}, 0)
		pdf.Line(chartX, y(1), chartX+chartW, y(1))
		pdf.SetDashPattern([]float64{}, 0)
	}

	pdf.SetDrawColor(31, 119, 180)
	pdf.SetLineWidth(0.5)
	for i := 1; i < len(daily); i++ {
		pdf.Line(x(i-1), y(daily[i-1].CumReturn), x(i), y(daily[i].CumReturn))
	}
	if len(daily) == 1 {
		pdf.Circle(x(0), y(daily[0].CumReturn), 0.8, "F")
	}

	first, last := daily[0], daily[len(daily)-1]
	pdf.Text(chartX, chartY+chartH+6, first.Date.Format(contracts.DateLayout))
	pdf.Text(chartX+chartW-18, chartY+chartH+6, last.Date.Format(contracts.DateLayout))
	pdf.Text(chartX, chartY+chartH+14, fmt.Sprintf("Cumulative return  final %.4f  days %d", last.CumReturn, len(daily)))

	return output(pdf, w)
}

// WriteEquityCurve renders the curve to path
func WriteEquityCurve(path string, daily []contracts.DailyRecord, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create curve file: %w", err)
	}
	if err := RenderEquityCurve(f, daily, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func output(pdf *fpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render PDF: %w", err)
	}
	return nil
}
