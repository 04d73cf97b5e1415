package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPendingApproval    = errors.New("your account is pending HOD approval")
	ErrEmailTaken         = errors.New("email already registered")
)

// RegistrationInput is what a new teacher or student submits.
type RegistrationInput struct {
	Email           string          `json:"email" validate:"required,email"`
	Password        string          `json:"password" validate:"required,min=6"`
	ConfirmPassword string          `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
	Name            string          `json:"name" validate:"required"`
	Role            attendance.Role `json:"role" validate:"required,oneof=teacher student"`
	Department      string          `json:"department" validate:"required_if=Role teacher"`
	TeacherID       string          `json:"teacherId" validate:"required_if=Role teacher"`
	StudentID       string          `json:"studentId" validate:"required_if=Role student"`
}

func (in RegistrationInput) profile() attendance.Profile {
	if in.Role == attendance.RoleTeacher {
		return attendance.TeacherProfile{Department: in.Department, TeacherID: in.TeacherID}
	}
	return attendance.StudentProfile{StudentID: in.StudentID}
}

// RegistrationOutcome says whether the new account is signed in or waiting
// for the head of department.
type RegistrationOutcome struct {
	AwaitingApproval bool
	Session          *Session
}

// SignedIn reports whether registration established a session.
func (o RegistrationOutcome) SignedIn() bool { return o.Session != nil }

// ApprovalCounts tallies requests by status.
type ApprovalCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Service runs sign-in, registration and the teacher approval workflow.
type Service struct {
	repo     *attendance.Repository
	validate *validation.Validator
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires a workflow over repo.
func NewService(repo *attendance.Repository, validate *validation.Validator, log *zap.Logger) *Service {
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

// normalizeEmail trims surrounding blanks. Case is kept: stored emails match
// exactly.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Bootstrap seeds the head of department account. Safe on every start.
func (s *Service) Bootstrap(ctx context.Context) error {
	inserted, err := s.repo.SeedDepartmentHeadIfAbsent(ctx)
	if err != nil {
		s.log.Error("seed hod", zap.Error(err))
		return err
	}
	if inserted {
		s.log.Info("seeded head of department", zap.String("email", attendance.DefaultHODEmail))
	}
	return nil
}

// Login checks credentials and persists the session in sm.
func (s *Service) Login(ctx context.Context, sm *SessionManager, email, password string) (Session, error) {
	email = normalizeEmail(email)
	acct, ok, err := s.repo.FindAccountByCredentials(ctx, email, password)
	if err != nil {
		s.log.Error("login lookup", zap.Error(err))
		return Session{}, err
	}
	if !ok {
		s.log.Info("login refused", zap.String("email", email), zap.String("reason", "credentials"))
		return Session{}, ErrInvalidCredentials
	}
	if !acct.CanLogin() {
		s.log.Info("login refused", zap.String("email", email), zap.String("reason", "pending approval"))
		return Session{}, ErrPendingApproval
	}
	sess, err := sm.establish(ctx, acct)
	if err != nil {
		s.log.Error("persist session", zap.Error(err))
		return Session{}, err
	}
	s.log.Info("signed in", zap.String("account", acct.ID), zap.String("role", string(acct.Role())))
	return sess, nil
}

// Register creates an account. Teachers get a pending approval request and no
// session; students are signed in through sm.
func (s *Service) Register(ctx context.Context, sm *SessionManager, in RegistrationInput) (RegistrationOutcome, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
	in.TeacherID = strings.TrimSpace(in.TeacherID)
	in.StudentID = strings.TrimSpace(in.StudentID)
	if err := s.validate.Struct(in); err != nil {
		return RegistrationOutcome{}, err
	}

	taken, err := s.repo.AccountExistsByEmail(ctx, in.Email)
	if err != nil {
		s.log.Error("register lookup", zap.Error(err))
		return RegistrationOutcome{}, err
	}
	if taken {
		s.log.Info("registration refused", zap.String("email", in.Email), zap.String("reason", "email taken"))
		return RegistrationOutcome{}, ErrEmailTaken
	}

	secret, err := s.repo.HashSecret(in.Password)
	if err != nil {
		return RegistrationOutcome{}, err
	}
	now := s.now()
	acct := attendance.Account{
		ID:        s.newID(),
		Email:     in.Email,
		Secret:    secret,
		Name:      in.Name,
		Approved:  in.Role == attendance.RoleStudent,
		Profile:   in.profile(),
		CreatedAt: now,
	}
	if err := s.repo.InsertAccount(ctx, acct); err != nil {
		s.log.Error("insert account", zap.Error(err))
		return RegistrationOutcome{}, err
	}

	if in.Role == attendance.RoleTeacher {
		req := attendance.ApprovalRequest{
			ID:          acct.ID,
			UserID:      acct.ID,
			Email:       acct.Email,
			Name:        acct.Name,
			Department:  in.Department,
			TeacherID:   in.TeacherID,
			RequestedAt: now,
			Status:      attendance.Pending,
		}
		if err := s.repo.InsertApprovalRequest(ctx, req); err != nil {
			s.log.Error("insert approval request", zap.String("account", acct.ID), zap.Error(err))
			return RegistrationOutcome{}, err
		}
		s.log.Info("teacher registered", zap.String("account", acct.ID), zap.String("email", acct.Email))
		return RegistrationOutcome{AwaitingApproval: true}, nil
	}

	sess, err := sm.establish(ctx, acct)
	if err != nil {
		s.log.Error("persist session", zap.Error(err))
		return RegistrationOutcome{}, err
	}
	s.log.Info("student registered", zap.String("account", acct.ID), zap.String("email", acct.Email))
	return RegistrationOutcome{Session: &sess}, nil
}

// Logout clears the session in sm.
func (s *Service) Logout(ctx context.Context, sm *SessionManager) error {
	return sm.Clear(ctx)
}

func requireHOD(actor attendance.Account) error {
	if actor.Role() != attendance.RoleHOD {
		return attendance.ErrForbidden
	}
	return nil
}

// Approve moves a pending request to approved and lets its account sign in.
// Unknown or already decided requests are left as they are and decided is
// false.
func (s *Service) Approve(ctx context.Context, actor attendance.Account, requestID string) (decided bool, err error) {
	if err := requireHOD(actor); err != nil {
		return false, err
	}
	req, ok, err := s.pending(ctx, requestID)
	if err != nil || !ok {
		return false, err
	}
	if err := s.repo.SetApprovalStatus(ctx, req.ID, attendance.Approved); err != nil {
		s.log.Error("approve request", zap.String("request", req.ID), zap.Error(err))
		return false, err
	}
	if err := s.repo.SetAccountApproved(ctx, req.UserID, true); err != nil {
		s.log.Error("approve account", zap.String("account", req.UserID), zap.Error(err))
		return false, err
	}
	s.log.Info("teacher approved", zap.String("request", req.ID), zap.String("email", req.Email))
	return true, nil
}

// Reject moves a pending request to rejected. The account stays unapproved.
func (s *Service) Reject(ctx context.Context, actor attendance.Account, requestID string) (decided bool, err error) {
	if err := requireHOD(actor); err != nil {
		return false, err
	}
	req, ok, err := s.pending(ctx, requestID)
	if err != nil || !ok {
		return false, err
	}
	if err := s.repo.SetApprovalStatus(ctx, req.ID, attendance.Rejected); err != nil {
		s.log.Error("reject request", zap.String("request", req.ID), zap.Error(err))
		return false, err
	}
	s.log.Info("teacher rejected", zap.String("request", req.ID), zap.String("email", req.Email))
	return true, nil
}

func (s *Service) pending(ctx context.Context, requestID string) (attendance.ApprovalRequest, bool, error) {
	req, ok, err := s.repo.FindApprovalRequest(ctx, requestID)
	if err != nil {
		s.log.Error("find approval request", zap.String("request", requestID), zap.Error(err))
		return req, false, err
	}
	if !ok {
		s.log.Info("approval request not found", zap.String("request", requestID))
		return req, false, nil
	}
	if req.Status != attendance.Pending {
		s.log.Info("approval request already decided", zap.String("request", requestID), zap.String("status", string(req.Status)))
		return req, false, nil
	}
	return req, true, nil
}

// Approvals lists requests with the given status ("" or "all" for every
// request), newest first, along with counts over all requests.
func (s *Service) Approvals(ctx context.Context, actor attendance.Account, status string) ([]attendance.ApprovalRequest, ApprovalCounts, error) {
	if err := requireHOD(actor); err != nil {
		return nil, ApprovalCounts{}, err
	}
	switch status {
	case "", "all", string(attendance.Pending), string(attendance.Approved), string(attendance.Rejected):
	default:
		return nil, ApprovalCounts{}, validation.Invalid("status", "status must be one of [pending approved rejected all]")
	}
	reqs, err := s.repo.ListApprovalRequests(ctx)
	if err != nil {
		s.log.Error("list approval requests", zap.Error(err))
		return nil, ApprovalCounts{}, err
	}
	var counts ApprovalCounts
	out := make([]attendance.ApprovalRequest, 0, len(reqs))
	for i := len(reqs) - 1; i >= 0; i-- {
		r := reqs[i]
		switch r.Status {
		case attendance.Pending:
			counts.Pending++
		case attendance.Approved:
			counts.Approved++
		case attendance.Rejected:
			counts.Rejected++
		}
		if status == "" || status == "all" || string(r.Status) == status {
			out = append(out, r)
		}
	}
	return out, counts, nil
}
