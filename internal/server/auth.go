package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/models"
	"taskmanager/internal/service"
)

const actorKey = "actor"

// requireAuth resolves the caller from a bearer access token or HTTP Basic
// credentials and stores the account in the request context.
func (s *Server) requireAuth(c *gin.Context) {
	var (
		user models.User
		err  error
	)
	if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
		user, err = s.svc.AuthenticateToken(c.Request.Context(), token)
	} else if email, password, ok := c.Request.BasicAuth(); ok {
		user, err = s.svc.Authenticate(c.Request.Context(), email, password)
	} else {
		c.Header("WWW-Authenticate", `Bearer realm="taskmanager"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
		return
	}

	if errors.Is(err, service.ErrUnauthorized) {
		c.Header("WWW-Authenticate", `Bearer realm="taskmanager"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		s.logger.Error("authentication failed", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Set(actorKey, &user)
	c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type obtainTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshTokenRequest struct {
	Refresh string `json:"refresh"`
}

// handleObtainToken exchanges credentials for an access and refresh token.
func (s *Server) handleObtainToken(c *gin.Context) {
	var req obtainTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := s.svc.ObtainTokens(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, pair)
}

// handleRefreshToken exchanges a refresh token for a new access token.
func (s *Server) handleRefreshToken(c *gin.Context) {
	var req refreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	access, err := s.svc.RefreshToken(c.Request.Context(), req.Refresh)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"access": access})
}

// actor returns the authenticated account for the request.
func actor(c *gin.Context) *models.User {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
