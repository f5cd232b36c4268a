package web

import (
	"net/http"

	"guildpanel/internal/apperr"
	"guildpanel/internal/audit"
	"guildpanel/internal/bridge"
	"guildpanel/internal/render"
)

func (s *Server) handleGetWelcome(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.EnsureWelcomeSettings(r.Context(), r.PathValue("serverID"))
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load welcome settings", err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutWelcome(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverID")

	// Decoding over the existing record gives partial-update semantics:
	// absent fields keep their stored values.
	settings, err := s.store.EnsureWelcomeSettings(r.Context(), serverID)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load welcome settings", err))
		return
	}
	if err := decodeJSON(r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	settings.ServerID = serverID

	if settings.WelcomeChannelID != "" {
		if _, err := s.bridge.FetchChannel(r.Context(), serverID, settings.WelcomeChannelID); err != nil {
			s.writeError(w, r, apperr.Validation("welcome channel not found"))
			return
		}
	}
	if settings.GoodbyeChannelID != "" {
		if _, err := s.bridge.FetchChannel(r.Context(), serverID, settings.GoodbyeChannelID); err != nil {
			s.writeError(w, r, apperr.Validation("goodbye channel not found"))
			return
		}
	}
	if settings.AutoRoleID != "" {
		if !s.roleExists(r, serverID, settings.AutoRoleID) {
			s.writeError(w, r, apperr.Validation("auto-role not found"))
			return
		}
	}

	if err := s.store.UpsertWelcomeSettings(r.Context(), settings); err != nil {
		s.writeError(w, r, apperr.Persistence("failed to save welcome settings", err))
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionWelcomeUpdate, "welcome settings")
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) roleExists(r *http.Request, serverID, roleID string) bool {
	roles, err := s.bridge.FetchRoles(r.Context(), serverID)
	if err != nil {
		return false
	}
	for _, role := range roles {
		if role.ID == roleID {
			return true
		}
	}
	return false
}

func (s *Server) handleTestWelcome(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("serverID")
	var body struct {
		Type      string `json:"type"`
		ChannelID string `json:"channelId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Type == "" || body.ChannelID == "" {
		s.writeError(w, r, apperr.Validation("type and channel ID are required"))
		return
	}

	settings, found, err := s.store.GetWelcomeSettings(r.Context(), serverID)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load welcome settings", err))
		return
	}
	if !found {
		s.writeError(w, r, apperr.NotFound("welcome settings not found"))
		return
	}

	guild, err := s.bridge.FetchGuild(r.Context(), serverID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.bridge.FetchChannel(r.Context(), serverID, body.ChannelID); err != nil {
		s.writeError(w, r, err)
		return
	}

	content := settings.WelcomeMessage
	if body.Type == "goodbye" {
		content = settings.GoodbyeMessage
	}
	if content.Empty() {
		s.writeError(w, r, apperr.Validation("no "+body.Type+" message configured"))
		return
	}

	session := sessionOf(r)
	vars := render.WelcomeVars(session.Username, "<@"+session.UserID+">", guild.Name, guild.MemberCount, "")
	rendered := render.Render(content, vars)
	if rendered.Message != "" {
		rendered.Message = "**[TEST MESSAGE]**\n" + rendered.Message
	}
	// Test sends substitute the thumbnail like any other field so the
	// preview shows exactly what the tokens resolve to.
	if rendered.Embed != nil {
		rendered.Embed.Thumbnail = render.RenderText(rendered.Embed.Thumbnail, vars)
	}

	if err := s.bridge.SendToChannel(r.Context(), body.ChannelID, bridge.PayloadFrom(rendered, "#000000")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), serverID, session.UserID, audit.ActionWelcomeTest, body.Type+" test to "+body.ChannelID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Test " + body.Type + " message sent",
	})
}
