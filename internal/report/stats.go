// Package report summarizes attendance records and renders them for export.
package report

import (
	"math"
	"time"

	"schoolattend/internal/attendance"
)

// Stats counts records by status.
type Stats struct {
	Total       int     `json:"total"`
	Present     int     `json:"present"`
	Absent      int     `json:"absent"`
	Late        int     `json:"late"`
	PresentRate float64 `json:"presentRate"`
}

// Summarize counts recs. PresentRate is a percentage with one decimal and 0
// for no records.
func Summarize(recs []attendance.AttendanceRecord) Stats {
	var s Stats
	for _, r := range recs {
		s.Total++
		switch r.Status {
		case attendance.Present:
			s.Present++
		case attendance.Absent:
			s.Absent++
		case attendance.Late:
			s.Late++
		}
	}
	if s.Total > 0 {
		s.PresentRate = math.Round(float64(s.Present)/float64(s.Total)*1000) / 10
	}
	return s
}

// Standing labels an attendance rate.
func Standing(rate float64) string {
	switch {
	case rate >= 90:
		return "Excellent"
	case rate >= 75:
		return "Good"
	case rate >= 60:
		return "Average"
	default:
		return "Needs Improvement"
	}
}

// Day holds status counts for one calendar date.
type Day struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Late    int    `json:"late"`
}

// Trend returns one Day per date for the days ending at today, oldest first.
func Trend(recs []attendance.AttendanceRecord, today time.Time, days int) []Day {
	if days <= 0 {
		return []Day{}
	}
	out := make([]Day, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		d := today.AddDate(0, 0, i-days+1).Format(time.DateOnly)
		out[i] = Day{Date: d}
		index[d] = i
	}
	for _, r := range recs {
		i, ok := index[r.Date]
		if !ok {
			continue
		}
		switch r.Status {
		case attendance.Present:
			out[i].Present++
		case attendance.Absent:
			out[i].Absent++
		case attendance.Late:
			out[i].Late++
		}
	}
	return out
}
