package attendance

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"schoolattend/internal/validation"
)

var (
	// ErrForbidden means the acting account's role may not perform the operation.
	ErrForbidden = errors.New("not allowed for this role")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = validation.ErrInvalid
)

// Role names an account kind as persisted.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleHOD     Role = "hod"
)

// Profile holds the fields that belong to one role. The set of
// implementations is closed.
type Profile interface {
	Role() Role
	profile()
}

// TeacherProfile is carried by teacher accounts.
type TeacherProfile struct {
	Department string
	TeacherID  string
}

// StudentProfile is carried by student accounts.
type StudentProfile struct {
	StudentID string
}

// DepartmentHeadProfile is carried by the single hod account.
type DepartmentHeadProfile struct{}

func (TeacherProfile) Role() Role        { return RoleTeacher }
func (StudentProfile) Role() Role        { return RoleStudent }
func (DepartmentHeadProfile) Role() Role { return RoleHOD }

func (TeacherProfile) profile()        {}
func (StudentProfile) profile()        {}
func (DepartmentHeadProfile) profile() {}

// Seeded head of department.
const (
	DefaultHODID     = "hod-default"
	DefaultHODEmail  = "hod@school.edu"
	DefaultHODSecret = "hod123"
	DefaultHODName   = "Head of Department"
)

// Account represents a registered identity.
type Account struct {
	ID        string
	Email     string
	Secret    string
	Name      string
	Approved  bool
	Profile   Profile
	CreatedAt time.Time
}

// Role returns the role of the account's profile.
func (a Account) Role() Role {
	if a.Profile == nil {
		return ""
	}
	return a.Profile.Role()
}

// CanLogin reports whether the approval flag permits signing in.
func (a Account) CanLogin() bool {
	return a.Role() != RoleTeacher || a.Approved
}

// Public returns a copy without the stored secret.
func (a Account) Public() Account {
	a.Secret = ""
	return a
}

// StudentID returns the student id, or "" for non-students.
func (a Account) StudentID() string {
	if p, ok := a.Profile.(StudentProfile); ok {
		return p.StudentID
	}
	return ""
}

type accountJSON struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Password   string    `json:"password,omitempty"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Approved   bool      `json:"approved"`
	Department string    `json:"department,omitempty"`
	TeacherID  string    `json:"teacherId,omitempty"`
	StudentID  string    `json:"studentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MarshalJSON writes the flat layout shared with the browser build.
func (a Account) MarshalJSON() ([]byte, error) {
	out := accountJSON{
		ID:        a.ID,
		Email:     a.Email,
		Password:  a.Secret,
		Name:      a.Name,
		Role:      a.Role(),
		Approved:  a.Approved,
		CreatedAt: a.CreatedAt,
	}
	switch p := a.Profile.(type) {
	case TeacherProfile:
		out.Department, out.TeacherID = p.Department, p.TeacherID
	case StudentProfile:
		out.StudentID = p.StudentID
	case DepartmentHeadProfile:
	default:
		return nil, fmt.Errorf("account %s has no profile", a.ID)
	}
	return json.Marshal(out)
}

// UnmarshalJSON rejects unknown roles.
func (a *Account) UnmarshalJSON(b []byte) error {
	var in accountJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var p Profile
	switch in.Role {
	case RoleTeacher:
		p = TeacherProfile{Department: in.Department, TeacherID: in.TeacherID}
	case RoleStudent:
		p = StudentProfile{StudentID: in.StudentID}
	case RoleHOD:
		p = DepartmentHeadProfile{}
	default:
		return fmt.Errorf("account %s: unknown role %q", in.ID, in.Role)
	}
	*a = Account{
		ID:        in.ID,
		Email:     in.Email,
		Secret:    in.Password,
		Name:      in.Name,
		Approved:  in.Approved,
		Profile:   p,
		CreatedAt: in.CreatedAt,
	}
	return nil
}

// Status is a student's attendance for one session.
type Status string

const (
	Present Status = "present"
	Absent  Status = "absent"
	Late    Status = "late"
)

// Statuses lists every status in display order.
var Statuses = []Status{Present, Absent, Late}

func (s Status) Valid() bool {
	return s == Present || s == Absent || s == Late
}

// AttendanceRecord represents one student's status for one session.
type AttendanceRecord struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Date        string    `json:"date"`
	Status      Status    `json:"status"`
	MarkedBy    string    `json:"markedBy"`
	MarkedAt    time.Time `json:"markedAt"`
	Subject     string    `json:"subject,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// RecordPatch lists the fields an edit replaces; nil fields are left alone.
type RecordPatch struct {
	Status  *Status
	Subject *string
	Notes   *string
	Date    *string
}

func (p RecordPatch) apply(r *AttendanceRecord) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Subject != nil {
		r.Subject = *p.Subject
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
}

// ApprovalStatus is the state of a teacher approval request.
type ApprovalStatus string

const (
	Pending  ApprovalStatus = "pending"
	Approved ApprovalStatus = "approved"
	Rejected ApprovalStatus = "rejected"
)

// ApprovalRequest represents a teacher registration awaiting review.
type ApprovalRequest struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Department  string         `json:"department"`
	TeacherID   string         `json:"teacherId"`
	RequestedAt time.Time      `json:"requestedAt"`
	Status      ApprovalStatus `json:"status"`
}

// Secrets turns presented credentials into stored form and checks them.
type Secrets interface {
	Hash(secret string) (string, error)
	Verify(stored, presented string) bool
}

// PlainSecrets stores credentials as given.
type PlainSecrets struct{}

func (PlainSecrets) Hash(secret string) (string, error) { return secret, nil }

func (PlainSecrets) Verify(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
