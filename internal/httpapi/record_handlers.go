package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/report"
)

func filterFrom(c *gin.Context) attendance.RecordFilter {
	return attendance.RecordFilter{
		Search: c.Query("search"),
		Date:   c.Query("date"),
		Status: attendance.Status(c.Query("status")),
		From:   c.Query("from"),
		To:     c.Query("to"),
	}
}

func (s *server) records(c *gin.Context) ([]attendance.AttendanceRecord, bool) {
	sess, _ := auth.SessionFrom(c)
	recs, err := s.Attendance.Records(c.Request.Context(), sess.Account, filterFrom(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return recs, true
}

func (s *server) listRecords(c *gin.Context) {
	recs, ok := s.records(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs, "stats": report.Summarize(recs)})
}

func (s *server) markSession(c *gin.Context) {
	var in attendance.MarkSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sess, _ := auth.SessionFrom(c)
	recs, err := s.Attendance.MarkSession(c.Request.Context(), sess.Account, in)
	if err != nil {
		respondError(c, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.ObserveMarked(recs)
	}
	c.JSON(http.StatusCreated, gin.H{"records": recs})
}

func (s *server) updateRecord(c *gin.Context) {
	var req struct {
		Status attendance.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, _ := auth.SessionFrom(c)
	found, err := s.Attendance.SetStatus(c.Request.Context(), sess.Account, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) deleteRecord(c *gin.Context) {
	sess, _ := auth.SessionFrom(c)
	found, err := s.Attendance.Delete(c.Request.Context(), sess.Account, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) summary(c *gin.Context) {
	recs, ok := s.records(c)
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 366 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "days must be between 1 and 366"})
		return
	}
	stats := report.Summarize(recs)
	c.JSON(http.StatusOK, gin.H{
		"stats":    stats,
		"standing": report.Standing(stats.PresentRate),
		"trend":    report.Trend(recs, s.now().UTC(), days),
	})
}

func (s *server) export(c *gin.Context) {
	recs, ok := s.records(c)
	if !ok {
		return
	}
	sess, _ := auth.SessionFrom(c)
	layout, meta := report.Staff, report.Meta{Generated: s.now(), From: c.Query("from"), To: c.Query("to")}
	if sess.Role() == attendance.RoleStudent {
		layout = report.Student
		meta.Title = "My Attendance Report"
		meta.Student = sess.Name
	}

	format := c.DefaultQuery("format", "csv")
	var contentType string
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
	case "html":
		contentType = "text/html; charset=utf-8"
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "format must be one of csv, html, xlsx"})
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no attendance records found for the selected range"})
		return
	}

	name := fmt.Sprintf("attendance-report-%s.%s", s.now().Format("2006-01-02"), format)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	var err error
	switch format {
	case "csv":
		err = report.WriteCSV(c.Writer, recs, layout)
	case "html":
		err = report.WriteHTML(c.Writer, recs, layout, meta)
	case "xlsx":
		err = report.WriteXLSX(c.Writer, recs, layout)
	}
	if err != nil {
		_ = c.Error(err)
	}
}
