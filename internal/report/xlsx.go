package report

import (
	"io"

	"github.com/xuri/excelize/v2"

	"schoolattend/internal/attendance"
)

const (
	recordsSheet = "Records"
	summarySheet = "Summary"
)

// WriteXLSX writes a workbook with a Records sheet in the CSV column layout
// and a Summary sheet with the status counts.
func WriteXLSX(w io.Writer, recs []attendance.AttendanceRecord, layout Layout) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return err
	}
	if err := setRow(f, recordsSheet, 1, layout.header()); err != nil {
		return err
	}
	for i, r := range recs {
		if err := setRow(f, recordsSheet, i+2, layout.row(r)); err != nil {
			return err
		}
	}
	if len(recs) > 0 {
		if err := f.AutoFilter(recordsSheet, "A1:"+lastCell(len(layout.header()), len(recs)+1), nil); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	s := Summarize(recs)
	rows := [][]interface{}{
		{"Total Records", s.Total},
		{"Present", s.Present},
		{"Absent", s.Absent},
		{"Late", s.Late},
		{"Attendance Rate", s.PresentRate},
		{"Standing", Standing(s.PresentRate)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func lastCell(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}
