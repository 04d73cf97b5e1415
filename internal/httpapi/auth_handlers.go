package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/metrics"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expiresAt"`
	User      auth.Session `json:"user"`
}

// newSlot returns a fresh session slot for a sign-in through the API. The
// slot lives as long as the token issued for it.
func (s *server) newSlot() (string, *auth.SessionManager) {
	sid := uuid.NewString()
	return sid, auth.NewSessionManager(s.KV, auth.SessionKey(sid)).WithTTL(s.AccessTTL)
}

func (s *server) issue(c *gin.Context, sid string, sm *auth.SessionManager, sess auth.Session, status int) {
	tok, err := auth.IssueToken(sess.ID, sid, string(sess.Role()), s.Issuer, s.SigningKey, s.AccessTTL)
	if err != nil {
		if cerr := sm.Clear(c.Request.Context()); cerr != nil {
			_ = c.Error(cerr)
		}
		respondError(c, err)
		return
	}
	c.JSON(status, sessionResponse{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt.Unix(), User: sess})
}

func (s *server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sid, sm := s.newSlot()
	sess, err := s.Auth.Login(c.Request.Context(), sm, req.Email, req.Password)
	if s.Metrics != nil {
		s.Metrics.Logins.WithLabelValues(metrics.Outcome(err)).Inc()
	}
	if err != nil {
		respondError(c, err)
		return
	}
	s.issue(c, sid, sm, sess, http.StatusOK)
}

func (s *server) register(c *gin.Context) {
	var in auth.RegistrationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sid, sm := s.newSlot()
	out, err := s.Auth.Register(c.Request.Context(), sm, in)
	if s.Metrics != nil {
		s.Metrics.Registration.WithLabelValues(roleLabel(in.Role), metrics.Outcome(err)).Inc()
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if out.AwaitingApproval {
		c.JSON(http.StatusAccepted, gin.H{
			"status":  "awaiting_approval",
			"message": "Registration successful! Awaiting HOD approval.",
		})
		return
	}
	s.issue(c, sid, sm, *out.Session, http.StatusCreated)
}

// roleLabel keeps metric labels to the roles that can register.
func roleLabel(r attendance.Role) string {
	if r == attendance.RoleTeacher || r == attendance.RoleStudent {
		return string(r)
	}
	return "invalid"
}

func (s *server) logout(c *gin.Context) {
	sm, _ := auth.ManagerFrom(c)
	if err := s.Auth.Logout(c.Request.Context(), sm); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) me(c *gin.Context) {
	sess, _ := auth.SessionFrom(c)
	c.JSON(http.StatusOK, sess)
}

func (s *server) listApprovals(c *gin.Context) {
	sess, _ := auth.SessionFrom(c)
	reqs, counts, err := s.Auth.Approvals(c.Request.Context(), sess.Account, c.DefaultQuery("status", "pending"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs, "counts": counts})
}

func (s *server) approve(c *gin.Context) {
	s.decide(c, attendance.Approved)
}

func (s *server) reject(c *gin.Context) {
	s.decide(c, attendance.Rejected)
}

func (s *server) decide(c *gin.Context, decision attendance.ApprovalStatus) {
	sess, _ := auth.SessionFrom(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		decided bool
		err     error
	)
	if decision == attendance.Approved {
		decided, err = s.Auth.Approve(ctx, sess.Account, id)
	} else {
		decided, err = s.Auth.Reject(ctx, sess.Account, id)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	req, ok, err := s.Attendance.Repo().FindApprovalRequest(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "approval request not found"})
		return
	}
	if s.Metrics != nil && decided {
		s.Metrics.Decisions.WithLabelValues(string(decision)).Inc()
	}
	c.JSON(http.StatusOK, req)
}
