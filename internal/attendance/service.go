package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolattend/internal/validation"
)

// MarkEntry is one student on a marking roster. An empty Status means present.
type MarkEntry struct {
	StudentID   string `json:"studentId" validate:"required"`
	StudentName string `json:"studentName" validate:"required"`
	Status      Status `json:"status" validate:"required,oneof=present absent late"`
}

// MarkSessionInput is a teacher's submission for one class session.
type MarkSessionInput struct {
	Date    string      `json:"date" validate:"required,isodate"`
	Subject string      `json:"subject" validate:"required"`
	Notes   string      `json:"notes"`
	All     Status      `json:"all" validate:"omitempty,oneof=present absent late"`
	Entries []MarkEntry `json:"entries" validate:"min=1,dive"`
}

// RecordFilter narrows a record listing. Zero fields match everything.
type RecordFilter struct {
	Search string
	Date   string
	Status Status
	From   string
	To     string
}

func (f RecordFilter) match(r AttendanceRecord) bool {
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	// dates are YYYY-MM-DD so string order is calendar order
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(r.StudentName), q) ||
			strings.Contains(strings.ToLower(r.StudentID), q) ||
			strings.Contains(strings.ToLower(r.Subject), q)
	}
	return true
}

// Service coordinates marking sessions and record access by role.
type Service struct {
	repo     *Repository
	validate *validation.Validator
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, validate *validation.Validator, log *zap.Logger) *Service {
	if validate == nil {
		validate = validation.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		validate: validate,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Repo exposes the underlying repository.
func (s *Service) Repo() *Repository { return s.repo }

func requireTeacher(actor Account) error {
	if actor.Role() != RoleTeacher {
		return ErrForbidden
	}
	return nil
}

// MarkSession creates one record per roster entry, written together.
func (s *Service) MarkSession(ctx context.Context, actor Account, in MarkSessionInput) ([]AttendanceRecord, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}

	in.Date = strings.TrimSpace(in.Date)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Notes = strings.TrimSpace(in.Notes)
	entries := make([]MarkEntry, len(in.Entries))
	for i, e := range in.Entries {
		e.StudentID = strings.TrimSpace(e.StudentID)
		e.StudentName = strings.TrimSpace(e.StudentName)
		if in.All != "" {
			e.Status = in.All
		} else if e.Status == "" {
			e.Status = Present
		}
		entries[i] = e
	}
	in.Entries = entries

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.StudentID] {
			return nil, validation.Invalid("entries", fmt.Sprintf("student %s appears more than once", e.StudentID))
		}
		seen[e.StudentID] = true
	}

	markedAt := s.now()
	recs := make([]AttendanceRecord, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, AttendanceRecord{
			ID:          s.newID(),
			StudentID:   e.StudentID,
			StudentName: e.StudentName,
			Date:        in.Date,
			Status:      e.Status,
			MarkedBy:    actor.Name,
			MarkedAt:    markedAt,
			Subject:     in.Subject,
			Notes:       in.Notes,
		})
	}
	if err := s.repo.InsertAttendanceRecords(ctx, recs); err != nil {
		s.log.Error("mark session", zap.String("teacher", actor.ID), zap.Error(err))
		return nil, err
	}
	s.log.Info("attendance marked",
		zap.String("teacher", actor.ID),
		zap.String("date", in.Date),
		zap.String("subject", in.Subject),
		zap.Int("students", len(recs)))
	return recs, nil
}

// SetStatus changes the status of one record. found is false for an unknown id.
func (s *Service) SetStatus(ctx context.Context, actor Account, id string, status Status) (found bool, err error) {
	if err := requireTeacher(actor); err != nil {
		return false, err
	}
	if !status.Valid() {
		return false, validation.Invalid("status", "status must be one of [present absent late]")
	}
	found, err = s.repo.UpdateAttendanceRecord(ctx, id, RecordPatch{Status: &status})
	if err != nil {
		s.log.Error("update record", zap.String("record", id), zap.Error(err))
	}
	return found, err
}

// Delete removes one record. found is false for an unknown id.
func (s *Service) Delete(ctx context.Context, actor Account, id string) (found bool, err error) {
	if err := requireTeacher(actor); err != nil {
		return false, err
	}
	found, err = s.repo.DeleteAttendanceRecord(ctx, id)
	if err != nil {
		s.log.Error("delete record", zap.String("record", id), zap.Error(err))
	}
	return found, err
}

// Records lists what actor may see, newest date first. Students only see
// records carrying their own student id.
func (s *Service) Records(ctx context.Context, actor Account, f RecordFilter) ([]AttendanceRecord, error) {
	all, err := s.repo.ListAttendanceRecords(ctx)
	if err != nil {
		s.log.Error("list records", zap.Error(err))
		return nil, err
	}
	own := ""
	switch actor.Role() {
	case RoleStudent:
		own = actor.StudentID()
		if own == "" {
			return []AttendanceRecord{}, nil
		}
	case RoleTeacher, RoleHOD:
	default:
		return nil, ErrForbidden
	}

	out := make([]AttendanceRecord, 0, len(all))
	for _, r := range all {
		if own != "" && r.StudentID != own {
			continue
		}
		if f.match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}
