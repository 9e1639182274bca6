package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/fdg312/diet-hub/internal/ledger"
	"github.com/jung-kurt/gofpdf"
)

// HistorySource returns per-day ledger totals for a range.
type HistorySource interface {
	History(ctx context.Context, ownerUserID, from, to string) (*ledger.HistoryResponse, error)
}

// Generator generates PDF/CSV reports from ledger history
type Generator struct {
	history HistorySource
}

func NewGenerator(history HistorySource) *Generator {
	return &Generator{history: history}
}

// GenerateReport generates a report and returns the data
func (g *Generator) GenerateReport(ctx context.Context, ownerUserID string, req CreateReportRequest) ([]byte, error) {
	history, err := g.history.History(ctx, ownerUserID, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger history: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return g.generatePDF(history)
	case FormatCSV:
		return g.generateCSV(history)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func (g *Generator) generateCSV(history *ledger.HistoryResponse) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"date", "calories", "protein_g", "carbs_g", "fat_g", "entries", "calories_pct_of_goal"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, day := range history.Days {
		row := []string{
			day.Date,
			formatAmount(day.Totals.Calories),
			formatAmount(day.Totals.Protein),
			formatAmount(day.Totals.Carbs),
			formatAmount(day.Totals.Fat),
			strconv.Itoa(day.EntriesCount),
			strconv.Itoa(ledger.PercentOfGoal(day.Totals.Calories, history.Goals.Calories)),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// generatePDF uses a core font, so every string drawn must stay ASCII.
func (g *Generator) generatePDF(history *ledger.HistoryResponse) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Nutrition report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Nutrition report")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s - %s", history.From, history.To))
	pdf.Ln(12)

	summary := calculateSummary(history)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	lines := []string{
		fmt.Sprintf("Days logged: %d", summary.DaysLogged),
		fmt.Sprintf("Daily goal: %d kcal, P %d g, C %d g, F %d g",
			history.Goals.Calories, history.Goals.Protein, history.Goals.Carbs, history.Goals.Fat),
		fmt.Sprintf("Average calories: %s kcal", formatAverage(summary.AvgCalories, summary.DaysLogged)),
		fmt.Sprintf("Average protein: %s g", formatAverage(summary.AvgProtein, summary.DaysLogged)),
		fmt.Sprintf("Average carbs: %s g", formatAverage(summary.AvgCarbs, summary.DaysLogged)),
		fmt.Sprintf("Average fat: %s g", formatAverage(summary.AvgFat, summary.DaysLogged)),
		fmt.Sprintf("Days at or under calorie goal: %d", summary.DaysWithinGoal),
	}
	for _, line := range lines {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Days")
	pdf.Ln(8)

	drawDaysTable(pdf, history)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// Summary holds calculated summary statistics
type Summary struct {
	DaysLogged     int
	AvgCalories    float64
	AvgProtein     float64
	AvgCarbs       float64
	AvgFat         float64
	DaysWithinGoal int
}

func calculateSummary(history *ledger.HistoryResponse) Summary {
	var s Summary
	for _, day := range history.Days {
		s.DaysLogged++
		s.AvgCalories += day.Totals.Calories
		s.AvgProtein += day.Totals.Protein
		s.AvgCarbs += day.Totals.Carbs
		s.AvgFat += day.Totals.Fat
		if history.Goals.Calories > 0 && day.Totals.Calories <= float64(history.Goals.Calories) {
			s.DaysWithinGoal++
		}
	}

	if s.DaysLogged > 0 {
		n := float64(s.DaysLogged)
		s.AvgCalories /= n
		s.AvgProtein /= n
		s.AvgCarbs /= n
		s.AvgFat /= n
	}

	return s
}

func drawDaysTable(pdf *gofpdf.Fpdf, history *ledger.HistoryResponse) {
	pdf.SetFont("Helvetica", "B", 9)
	for i, title := range []string{"Date", "Kcal", "Protein", "Carbs", "Fat", "Entries", "% goal"} {
		width := 22.0
		if i == 0 {
			width = 28
		}
		pdf.CellFormat(width, 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, day := range history.Days {
		pdf.CellFormat(28, 6, day.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, formatAmount(day.Totals.Calories), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, formatAmount(day.Totals.Protein), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, formatAmount(day.Totals.Carbs), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, formatAmount(day.Totals.Fat), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, strconv.Itoa(day.EntriesCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 6, strconv.Itoa(ledger.PercentOfGoal(day.Totals.Calories, history.Goals.Calories)), "1", 1, "R", false, 0, "")
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatAverage(v float64, n int) string {
	if n == 0 {
		return "no data"
	}
	return formatAmount(v)
}
