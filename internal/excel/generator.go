package excel

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/jobpay/internal/model"
)

const (
	summarySheet = "Summary"
	rankingSheet = "Ranking"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders an earnings ranking as an xlsx workbook with a summary
// sheet and one ranking sheet.
func (g *Generator) Generate(report model.EarningsReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := file.NewSheet(rankingSheet); err != nil {
		return nil, err
	}

	g.writeSummary(file, report)

	var err error
	switch report.Mode {
	case model.ReportModeProfession:
		err = g.writeProfessions(file, report.Professions)
	case model.ReportModeClients:
		err = g.writeClients(file, report.Clients)
	default:
		err = fmt.Errorf("unsupported report mode %q", report.Mode)
	}
	if err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.EarningsReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	set("A1", "Report")
	set("B1", reportLabel(report.Mode))
	set("A2", "Period start")
	set("B2", formatDateTime(report.Window.Start))
	set("A3", "Period end")
	set("B3", formatDateTime(report.Window.End))
	set("A4", "Generated at")
	set("B4", formatDateTime(report.GeneratedAt))
	set("A5", "Rows")
	set("B5", rowCount(report))
	set("A6", "Total paid")
	set("B6", formatMoney(totalPaid(report)))

	_ = file.SetColWidth(summarySheet, "A", "A", 18)
	_ = file.SetColWidth(summarySheet, "B", "B", 28)
}

func (g *Generator) writeProfessions(file *excelize.File, rows []model.ProfessionTotal) error {
	if err := writeHeader(file, "Rank", "Profession", "Total paid"); err != nil {
		return err
	}
	for i, row := range rows {
		line := i + 2
		_ = file.SetCellValue(rankingSheet, fmt.Sprintf("A%d", line), i+1)
		_ = file.SetCellValue(rankingSheet, fmt.Sprintf("B%d", line), row.Profession)
		_ = file.SetCellValue(rankingSheet, fmt.Sprintf("C%d", line), formatMoney(row.TotalPaid))
	}
	_ = file.SetColWidth(rankingSheet, "A", "A", 8)
	_ = file.SetColWidth(rankingSheet, "B", "B", 32)
	_ = file.SetColWidth(rankingSheet, "C", "C", 16)
	return nil
}

func (g *Generator) writeClients(file *excelize.File, rows []model.ClientTotal) error {
	if err := writeHeader(file, "Rank", "Client ID", "Full name", "Paid"); err != nil {
		return err
	}
	for i, row := range rows {
		line := i + 2
		_ = file.SetCellValue(rankingSheet, fmt.Sprintf("A%d", line), i+1)
		_ = file.SetCellValue(rankingSheet, fmt.Sprintf("B%d", line), row.ID.String())
		_ = file.SetCellValue(rankingSheet, fmt.Sprintf("C%d", line), row.FullName)
		_ = file.SetCellValue(rankingSheet, fmt.Sprintf("D%d", line), formatMoney(row.TotalPaid))
	}
	_ = file.SetColWidth(rankingSheet, "A", "A", 8)
	_ = file.SetColWidth(rankingSheet, "B", "B", 38)
	_ = file.SetColWidth(rankingSheet, "C", "C", 32)
	_ = file.SetColWidth(rankingSheet, "D", "D", 16)
	return nil
}

func writeHeader(file *excelize.File, headers ...string) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		_ = file.SetCellValue(rankingSheet, cell, header)
	}
	return nil
}

func reportLabel(mode model.ReportMode) string {
	switch mode {
	case model.ReportModeProfession:
		return "Best profession"
	case model.ReportModeClients:
		return "Best clients"
	default:
		return "Report"
	}
}

func rowCount(report model.EarningsReport) int {
	if report.Mode == model.ReportModeClients {
		return len(report.Clients)
	}
	return len(report.Professions)
}

func totalPaid(report model.EarningsReport) decimal.Decimal {
	total := decimal.Zero
	for _, row := range report.Professions {
		total = total.Add(row.TotalPaid)
	}
	for _, row := range report.Clients {
		total = total.Add(row.TotalPaid)
	}
	return total
}

func formatMoney(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
