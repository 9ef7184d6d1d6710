package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/service"
)

// handleRegister creates an account. No credentials are required.
func (s *Server) handleRegister(c *gin.Context) {
	var req service.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	user, err := s.svc.Register(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// handleMe returns the authenticated account.
func (s *Server) handleMe(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"user": actor(c)})
}

// handleListUsers lists all accounts for staff.
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.svc.ListUsers(c.Request.Context(), actor(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": users})
}

// handleListProfiles lists the profiles visible to the caller.
func (s *Server) handleListProfiles(c *gin.Context) {
	profiles, err := s.svc.ListProfiles(c.Request.Context(), actor(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"profiles": profiles})
}

// handleGetProfile returns a single visible profile.
func (s *Server) handleGetProfile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	profile, err := s.svc.GetProfile(c.Request.Context(), actor(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"profile": profile})
}

// handleUpdateProfile edits the caller's own profile.
func (s *Server) handleUpdateProfile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.ProfileInput
	if !bindJSON(c, &req) {
		return
	}
	profile, err := s.svc.UpdateProfile(c.Request.Context(), actor(c), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"profile": profile})
}
