package web

import (
	"net/http"
	"time"

	"guildpanel/internal/apperr"
	"guildpanel/internal/audit"
	"guildpanel/internal/storage"
)

func (s *Server) handleListLicenses(w http.ResponseWriter, r *http.Request) {
	licenses, err := s.store.ListLicenses(r.Context())
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to list licenses", err))
		return
	}
	writeJSON(w, http.StatusOK, licenses)
}

func (s *Server) handleCreateLicense(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key      string `json:"key"`
		ServerID string `json:"serverId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Key == "" || body.ServerID == "" {
		s.writeError(w, r, apperr.Validation("key and serverId are required"))
		return
	}

	license, err := s.store.CreateLicense(r.Context(), storage.License{
		Key:       body.Key,
		ServerID:  body.ServerID,
		ExpiresAt: time.Now().AddDate(1, 0, 0),
	})
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to create license", err))
		return
	}
	s.audit.Log(r.Context(), body.ServerID, sessionOf(r).UserID, audit.ActionLicenseChange, "license created")
	writeJSON(w, http.StatusCreated, license)
}

func (s *Server) handleGetLicenseByServer(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverID")
	license, found, err := s.store.GetLicenseByServer(r.Context(), serverID)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load license", err))
		return
	}
	if !found {
		s.writeError(w, r, apperr.NotFound("license not found"))
		return
	}
	writeJSON(w, http.StatusOK, license)
}

func (s *Server) handleUpdateLicense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Key       string     `json:"key"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	license, found, err := s.store.GetLicense(r.Context(), id)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load license", err))
		return
	}
	if !found {
		s.writeError(w, r, apperr.NotFound("license not found"))
		return
	}

	if body.Key != "" {
		license.Key = body.Key
	}
	if body.ExpiresAt != nil {
		license.ExpiresAt = *body.ExpiresAt
	}
	if err := s.store.UpdateLicense(r.Context(), license); err != nil {
		s.writeError(w, r, apperr.Persistence("failed to update license", err))
		return
	}
	s.audit.Log(r.Context(), license.ServerID, sessionOf(r).UserID, audit.ActionLicenseChange, "license updated")
	writeJSON(w, http.StatusOK, license)
}

func (s *Server) handleDeleteLicense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	license, found, err := s.store.GetLicense(r.Context(), id)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load license", err))
		return
	}
	if !found {
		s.writeError(w, r, apperr.NotFound("license not found"))
		return
	}

	if _, err := s.store.DeleteLicense(r.Context(), id); err != nil {
		s.writeError(w, r, apperr.Persistence("failed to delete license", err))
		return
	}
	s.audit.Log(r.Context(), license.ServerID, sessionOf(r).UserID, audit.ActionLicenseChange, "license deleted")
	w.WriteHeader(http.StatusNoContent)
}
