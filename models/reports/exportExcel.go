package reports

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const excelSheet = "Sheet1"

// ExcelExporter is a report row that can be written to a spreadsheet.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

func (r DailyRow) GetCellValues() []interface{} {
	return []interface{}{
		r.Date, r.Day, r.PlannedCalls, r.Connected, r.NotAnswered, r.Busy, r.SwitchOff, r.Invalid,
		r.AchievedCalls, r.AchievementPercent.String(), r.PlannedJds, r.JdSent, r.JdAchievementPercent.String(),
	}
}

var dailyHeadings = []string{
	"Date", "Day", "Planned Calls", "Connected", "Not Answered", "Busy", "Switch Off", "Invalid",
	"Achieved Calls", "Achievement %", "Planned JDs", "JD Sent", "JD Achievement %",
}

// ExportDailyAnalysisExcel writes the daily analysis as an xlsx workbook, one row
// per date followed by a totals row.
func ExportDailyAnalysisExcel(w io.Writer, resp *DailyAnalysis) error {
	rows := make([]ExcelExporter, 0, len(resp.Dates)+1)
	for _, d := range resp.Dates {
		rows = append(rows, d)
	}
	totals := resp.Totals
	totals.Date = "Total"
	rows = append(rows, totals)
	return exportExcel(w, rows, dailyHeadings...)
}

func exportExcel(w io.Writer, data []ExcelExporter, headings ...string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(excelSheet, cell, h); err != nil {
			return err
		}
	}

	for r, d := range data {
		for c, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(excelSheet, cell, value); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
