package web

import (
	"net/http"
	"strconv"
	"time"

	"guildpanel/internal/apperr"
	"guildpanel/internal/audit"
	"guildpanel/internal/bridge"
	"guildpanel/internal/render"
	"guildpanel/internal/storage"
)

type serverDetails struct {
	bridge.Guild
	Settings *storage.ServerSettings `json:"settings,omitempty"`
	License  *licenseSummary         `json:"license,omitempty"`
}

type licenseSummary struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validSnowflake(id) {
		s.writeError(w, r, apperr.Validation("invalid server id"))
		return
	}

	guild, err := s.bridge.FetchGuild(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	details := serverDetails{Guild: guild}
	if settings, found, err := s.store.GetServerSettings(r.Context(), id); err == nil && found {
		details.Settings = &settings
	}
	if license, found, err := s.store.GetLicenseByServer(r.Context(), id); err == nil && found {
		details.License = &licenseSummary{Key: license.Key, ExpiresAt: license.ExpiresAt}
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.bridge.FetchChannels(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	var body struct {
		Name string `json:"name"`
		Type int    `json:"type"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Name == "" {
		s.writeError(w, r, apperr.Validation("channel name is required"))
		return
	}

	channel, err := s.bridge.CreateChannel(r.Context(), serverID, body.Name, body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionChannelCreate, "channel "+channel.Name)
	writeJSON(w, http.StatusOK, channel)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	channelID := r.PathValue("channelID")
	if err := s.bridge.DeleteChannel(r.Context(), serverID, channelID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionChannelDelete, "channel "+channelID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.bridge.FetchRoles(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Name == "" {
		s.writeError(w, r, apperr.Validation("role name is required"))
		return
	}

	color := 0
	if body.Color != "" {
		parsed, err := strconv.ParseInt(trimHash(body.Color), 16, 32)
		if err != nil {
			s.writeError(w, r, apperr.Validation("invalid role color"))
			return
		}
		color = int(parsed)
	}

	role, err := s.bridge.CreateRole(r.Context(), serverID, body.Name, color)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionRoleCreate, "role "+role.Name)
	writeJSON(w, http.StatusOK, role)
}

func trimHash(color string) string {
	if len(color) > 0 && color[0] == '#' {
		return color[1:]
	}
	return color
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.bridge.FetchMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	if !validSnowflake(serverID) {
		s.writeError(w, r, apperr.Validation("invalid server id"))
		return
	}

	var body struct {
		ChannelID string        `json:"channelId"`
		Message   string        `json:"message"`
		Embed     *render.Embed `json:"embedMessage"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !validSnowflake(body.ChannelID) {
		s.writeError(w, r, apperr.Validation("invalid channel id"))
		return
	}
	if body.Message == "" && body.Embed == nil {
		s.writeError(w, r, apperr.Validation("either message or embedMessage must be provided"))
		return
	}

	if _, err := s.bridge.FetchChannel(r.Context(), serverID, body.ChannelID); err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := bridge.Payload{Content: body.Message, Embed: body.Embed}
	if err := s.bridge.SendToChannel(r.Context(), body.ChannelID, payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionMessageSend, "channel "+body.ChannelID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	settings, found, err := s.store.GetServerSettings(r.Context(), serverID)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load settings", err))
		return
	}
	if !found {
		s.writeError(w, r, apperr.NotFound("server settings not found"))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	var settings storage.ServerSettings
	if err := decodeJSON(r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	settings.ServerID = serverID

	if err := s.store.UpsertServerSettings(r.Context(), settings); err != nil {
		s.writeError(w, r, apperr.Persistence("failed to save settings", err))
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionSettingsUpdate, "server settings")
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleGetBotSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.EnsureBotSettings(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load bot settings", err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePostBotSettings(w http.ResponseWriter, r *http.Request) {
	serverID := r.PathValue("id")
	var settings storage.BotSettings
	if err := decodeJSON(r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	settings.ServerID = serverID

	if err := s.store.UpsertBotSettings(r.Context(), settings); err != nil {
		s.writeError(w, r, apperr.Persistence("failed to save bot settings", err))
		return
	}
	s.audit.Log(r.Context(), serverID, sessionOf(r).UserID, audit.ActionSettingsUpdate, "bot settings")
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	since := time.Now().AddDate(0, 0, -days)
	logs, err := s.store.ListAuditLogs(r.Context(), r.PathValue("id"), since)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to load audit logs", err))
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
