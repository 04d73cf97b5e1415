package report

import (
	"html/template"
	"io"
	"strings"
	"time"

	"schoolattend/internal/attendance"
)

// Meta describes the report heading.
type Meta struct {
	Title     string
	Student   string // set for a single-student report
	Generated time.Time
	From      string
	To        string
}

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"dash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Meta.Title}}</title>
<style>
body { font-family: Arial, sans-serif; padding: 40px; }
h1 { color: #333; }
.stats { display: flex; gap: 20px; margin: 20px 0; }
.stat-card { padding: 15px; border: 1px solid #ddd; border-radius: 8px; }
.stat-card p { font-size: 24px; font-weight: bold; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { padding: 12px; text-align: left; border-bottom: 1px solid #ddd; }
th { background-color: #f5f5f5; font-weight: bold; }
.present { color: green; }
.absent { color: red; }
.late { color: orange; }
</style>
</head>
<body>
<h1>{{.Meta.Title}}</h1>
{{if .Meta.Student}}<p><strong>Student:</strong> {{.Meta.Student}}</p>
{{end}}<p>Generated on: {{.Meta.Generated.Format "2006-01-02"}}</p>
{{if .Meta.From}}<p>From: {{.Meta.From}}</p>
{{end}}{{if .Meta.To}}<p>To: {{.Meta.To}}</p>
{{end}}<div class="stats">
<div class="stat-card"><h3>Total Records</h3><p>{{.Stats.Total}}</p></div>
<div class="stat-card"><h3>Present</h3><p class="present">{{.Stats.Present}}</p></div>
<div class="stat-card"><h3>Absent</h3><p class="absent">{{.Stats.Absent}}</p></div>
<div class="stat-card"><h3>Late</h3><p class="late">{{.Stats.Late}}</p></div>
<div class="stat-card"><h3>Attendance Rate</h3><p>{{printf "%.1f" .Stats.PresentRate}}%</p></div>
</div>
<table>
<thead>
<tr><th>Date</th>{{if .Staff}}<th>Student Name</th>{{end}}<th>Student ID</th><th>Subject</th><th>Status</th><th>Marked By</th></tr>
</thead>
<tbody>
{{range .Records}}<tr><td>{{.Date}}</td>{{if $.Staff}}<td>{{.StudentName}}</td>{{end}}<td>{{.StudentID}}</td><td>{{dash .Subject}}</td><td class="{{.Status}}">{{upper (print .Status)}}</td><td>{{.MarkedBy}}</td></tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

// WriteHTML renders a printable report with summary counts and a record table.
func WriteHTML(w io.Writer, recs []attendance.AttendanceRecord, layout Layout, meta Meta) error {
	if meta.Title == "" {
		meta.Title = "Attendance Report"
	}
	return page.Execute(w, struct {
		Meta    Meta
		Stats   Stats
		Staff   bool
		Records []attendance.AttendanceRecord
	}{meta, Summarize(recs), layout == Staff, recs})
}
