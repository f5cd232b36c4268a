package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"guildpanel/internal/apperr"
	"guildpanel/internal/config"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const stateCookie = "oauth_state"

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

func oauthConfig(cfg config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.CallbackURL,
		Scopes:       []string{"identify"},
		Endpoint:     discordEndpoint,
	}
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	stored, err := r.Cookie(stateCookie)
	if err != nil || stored.Value == "" || stored.Value != r.URL.Query().Get("state") {
		s.writeError(w, r, apperr.Unauthenticated("oauth state mismatch"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, r, apperr.Validation("missing oauth code"))
		return
	}

	token, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		s.writeError(w, r, apperr.Upstream("oauth exchange failed", err))
		return
	}

	identity, err := fetchIdentity(r.Context(), s.oauth, token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.store.FindOrCreateUser(r.Context(), identity.ID, identity.Username)
	if err != nil {
		s.writeError(w, r, apperr.Persistence("failed to register user", err))
		return
	}

	session := s.sessions.Create(user.ID, user.Username)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func fetchIdentity(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (discordUser, error) {
	client := conf.Client(ctx, token)
	client.Timeout = 10 * time.Second

	resp, err := client.Get("https://discord.com/api/users/@me")
	if err != nil {
		return discordUser{}, apperr.Upstream("failed to fetch identity", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return discordUser{}, apperr.Unauthenticated("identity request rejected")
	}
	var user discordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return discordUser{}, apperr.Upstream("failed to decode identity", err)
	}
	return user, nil
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFrom(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]string{
			"id":       session.UserID,
			"username": session.Username,
		},
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) sessionFrom(r *http.Request) (Session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Session{}, false
	}
	return s.sessions.Get(cookie.Value)
}
