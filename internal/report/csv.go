package report

import (
	"io"
	"strings"

	"schoolattend/internal/attendance"
)

// Layout picks the columns of an export.
type Layout int

const (
	// Staff exports carry the student name column.
	Staff Layout = iota
	// Student exports are scoped to one student and omit the name.
	Student
)

func (l Layout) header() []string {
	if l == Student {
		return []string{"Date", "Student ID", "Subject", "Status", "Marked By", "Notes"}
	}
	return []string{"Date", "Student Name", "Student ID", "Subject", "Status", "Marked By", "Notes"}
}

func (l Layout) row(r attendance.AttendanceRecord) []string {
	if l == Student {
		return []string{r.Date, r.StudentID, r.Subject, string(r.Status), r.MarkedBy, r.Notes}
	}
	return []string{r.Date, r.StudentName, r.StudentID, r.Subject, string(r.Status), r.MarkedBy, r.Notes}
}

// WriteCSV writes recs with every field quoted and rows separated by "\n",
// with no trailing newline.
func WriteCSV(w io.Writer, recs []attendance.AttendanceRecord, layout Layout) error {
	var b strings.Builder
	writeRow(&b, layout.header())
	for _, r := range recs {
		b.WriteByte('\n')
		writeRow(&b, layout.row(r))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}
