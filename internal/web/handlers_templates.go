package web

import (
	"net/http"

	"guildpanel/internal/apperr"
	"guildpanel/internal/audit"
	"guildpanel/internal/storage"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListTemplates(r.Context(), r.PathValue("serverID"), r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to list templates", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverID")
	var template storage.MessageTemplate
	if err := decodeJSON(r, &template); err != nil {
		s.writeError(w, r, err)
		return
	}
	template.ServerID = serverID

	if template.Name == "" {
		s.writeError(w, r, apperr.Validation("name and content are required"))
		return
	}
	if template.Content.Empty() {
		s.writeError(w, r, apperr.Validation("template must have message or embed content"))
		return
	}
	if template.Category != "" && !storage.ValidCategory(template.Category) {
		s.writeError(w, r, apperr.Validation("invalid category"))
		return
	}

	created, err := s.store.CreateTemplate(r.Context(), template)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to create template", err))
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionTemplateCreate, "template "+created.Name)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	template, found, err := s.store.GetTemplate(r.Context(), r.PathValue("serverID"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load template", err))
		return
	}
	if !found {
		s.writeError(w, r, apperr.NotFound("template not found"))
		return
	}
	writeJSON(w, http.StatusOK, template)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverID")
	id := r.PathValue("id")

	existing, found, err := s.store.GetTemplate(r.Context(), serverID, id)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load template", err))
		return
	}
	if !found {
		s.writeError(w, r, apperr.NotFound("template not found"))
		return
	}

	if err := decodeJSON(r, &existing); err != nil {
		s.writeError(w, r, err)
		return
	}
	existing.ID = id
	existing.ServerID = serverID
	if existing.Category != "" && !storage.ValidCategory(existing.Category) {
		s.writeError(w, r, apperr.Validation("invalid category"))
		return
	}

	if err := s.store.UpdateTemplate(r.Context(), existing); err != nil {
		s.writeError(w, r, apperr.Persistence("failed to update template", err))
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionTemplateUpdate, "template "+existing.Name)
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverID")
	id := r.PathValue("id")

	deleted, err := s.store.DeleteTemplate(r.Context(), serverID, id)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to delete template", err))
		return
	}
	if !deleted {
		s.writeError(w, r, apperr.NotFound("template not found"))
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionTemplateDelete, "template "+id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUseTemplate(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverID")
	id := r.PathValue("id")
	var body struct {
		ChannelID string `json:"channelId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	template, err := s.templates.Use(r.Context(), serverID, id, body.ChannelID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionTemplateUse, "template "+template.Name+" to "+body.ChannelID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "template": template})
}
