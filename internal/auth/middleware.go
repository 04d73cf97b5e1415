package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"schoolattend/internal/attendance"
	"schoolattend/internal/store"
)

const (
	ctxClaims  = "claims"
	ctxSession = "session"
	ctxManager = "sessionManager"
)

// RequireSession enforces bearer JWT tokens signed with HS256 and loads the
// session the token points at. A token whose session was logged out is refused,
// and an expired token has its session slot removed.
func RequireSession(kv store.KV, signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := ParseToken(tokenStr, signingKey, issuer)
		if err != nil {
			if sid, ok := ExpiredSession(tokenStr, signingKey, issuer, time.Now()); ok {
				if err := NewSessionManager(kv, SessionKey(sid)).Clear(c.Request.Context()); err != nil {
					_ = c.Error(err)
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sm := NewSessionManager(kv, SessionKey(claims.SessionID))
		sess, ok, err := sm.Current(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session ended"})
			return
		}
		c.Set(ctxClaims, claims)
		c.Set(ctxSession, sess)
		c.Set(ctxManager, sm)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles. It must run
// after RequireSession.
func RequireRole(allowed ...attendance.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		for _, r := range allowed {
			if sess.Role() == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": attendance.ErrForbidden.Error()})
	}
}

// SessionFrom returns the session loaded by RequireSession.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

// ManagerFrom returns the session manager bound to the request's token.
func ManagerFrom(c *gin.Context) (*SessionManager, bool) {
	v, ok := c.Get(ctxManager)
	if !ok {
		return nil, false
	}
	sm, ok := v.(*SessionManager)
	return sm, ok
}

// ClaimsFrom returns the parsed token claims.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return Claims{}, false
	}
	cl, ok := v.(Claims)
	return cl, ok
}
