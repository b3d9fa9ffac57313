package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/botcharts/internal/auth"
	"github.com/rickgao/botcharts/internal/session"
)

const (
	sessionCookie = "botcharts_session"
	sessionHeader = "X-Session-ID"
)

func (s *Server) oauthReady(c *gin.Context) bool {
	if s.deps.OAuth == nil || !s.deps.OAuth.Enabled() || s.deps.Sessions == nil || s.deps.Accounts == nil {
		errorJSON(c, http.StatusServiceUnavailable, "oauth not configured")
		return false
	}
	return true
}

// sessionID reads the session cookie, then the session header.
func sessionID(c *gin.Context) string {
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		return id
	}
	return c.GetHeader(sessionHeader)
}

func (s *Server) login(c *gin.Context) {
	if !s.oauthReady(c) {
		return
	}

	state := auth.GenerateState()
	verifier := auth.GenerateCodeVerifier()

	url, err := s.deps.OAuth.AuthorizeURL(state, verifier)
	if err != nil {
		s.logger.Error("build authorize url failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "failed to start login")
		return
	}
	s.deps.Sessions.BeginLogin(state, verifier)

	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusFound, url)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":   url,
		"state": state,
	})
}

func (s *Server) callback(c *gin.Context) {
	if !s.oauthReady(c) {
		return
	}
	if e := c.Query("error"); e != "" {
		errorJSON(c, http.StatusBadRequest, "authorization failed: "+e)
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		errorJSON(c, http.StatusBadRequest, "code and state are required")
		return
	}
	verifier, ok := s.deps.Sessions.TakeLogin(state)
	if !ok {
		errorJSON(c, http.StatusBadRequest, "unknown or expired login state")
		return
	}

	ctx := c.Request.Context()
	token, err := s.deps.OAuth.Exchange(ctx, code, verifier)
	if err != nil {
		s.logger.Warn("token exchange failed", "error", err)
		errorJSON(c, http.StatusBadGateway, "token exchange failed")
		return
	}

	who, err := s.deps.Accounts.Whoami(ctx, token.AccessToken)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		errorJSON(c, http.StatusUnauthorized, "token rejected by accounts service")
		return
	case err != nil:
		s.logger.Warn("whoami after login failed", "error", err)
		errorJSON(c, http.StatusBadGateway, "accounts service unavailable")
		return
	}

	sess := s.deps.Sessions.Create(who.LoginID, token.AccessToken, who.Accounts)
	s.logger.Info("session created", "session", sess.ID, "loginid", sess.LoginID)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, sess.ID, 0, "/", "", s.cfg.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (s *Server) logout(c *gin.Context) {
	if s.deps.Sessions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "oauth not configured")
		return
	}

	sess, ok := s.deps.Sessions.Delete(sessionID(c))
	if ok && s.deps.Accounts != nil {
		// Remote logout is best effort; the local session is already gone.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer cancel()
		if err := s.deps.Accounts.Logout(ctx, sess.Token); err != nil {
			s.logger.Warn("remote logout failed", "session", sess.ID, "error", err)
		}
	}

	c.SetCookie(sessionCookie, "", -1, "/", "", s.cfg.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (s *Server) currentSession(c *gin.Context) {
	if s.deps.Sessions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "oauth not configured")
		return
	}

	sess, ok := s.deps.Sessions.Get(sessionID(c))
	if !ok {
		errorJSON(c, http.StatusUnauthorized, "not logged in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (s *Server) switchAccount(c *gin.Context) {
	if s.deps.Sessions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "oauth not configured")
		return
	}

	var body struct {
		LoginID string `json:"loginid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		errorJSON(c, http.StatusBadRequest, "loginid is required")
		return
	}

	sess, err := s.deps.Sessions.SwitchAccount(sessionID(c), body.LoginID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		errorJSON(c, http.StatusUnauthorized, "not logged in")
		return
	case errors.Is(err, session.ErrUnknownAccount):
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}
