package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const stateTTL = 15 * time.Minute

func (s *Server) handleConnect(c *gin.Context) {
	if s.auth == nil {
		fail(c, http.StatusServiceUnavailable, "mailbox provider not configured")
		return
	}
	state := s.signer.State(c.Param("user"), stateTTL)
	c.Redirect(http.StatusFound, s.auth.AuthURL(state))
}

func (s *Server) handleOAuthCallback(c *gin.Context) {
	if s.auth == nil {
		fail(c, http.StatusServiceUnavailable, "mailbox provider not configured")
		return
	}
	userID, err := s.signer.Verify(c.Query("state"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "missing code")
		return
	}
	if err := s.auth.Exchange(c.Request.Context(), userID, code); err != nil {
		slog.Error("OAuth exchange failed.", "userId", userID, "error", err)
		fail(c, http.StatusBadGateway, "could not connect mailbox")
		return
	}
	success(c, http.StatusOK, gin.H{"userId": userID, "connected": true})
}
