package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"guildpanel/internal/analytics"
	"guildpanel/internal/apperr"
	"guildpanel/internal/audit"
	"guildpanel/internal/bridge"
	"guildpanel/internal/config"
	"guildpanel/internal/render"
	"guildpanel/internal/storage"
	"guildpanel/internal/templates"

	"go.uber.org/zap"
)

type fakeBridge struct {
	guilds      map[string]bridge.Guild
	channels    map[string]bridge.Channel
	roles       []bridge.Role
	sentChannel string
	sentPayload bridge.Payload
	sendCount   int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		guilds:   map[string]bridge.Guild{},
		channels: map[string]bridge.Channel{},
	}
}

func (f *fakeBridge) FetchGuild(ctx context.Context, guildID string) (bridge.Guild, error) {
	guild, ok := f.guilds[guildID]
	if !ok {
		return bridge.Guild{}, apperr.NotFound("server not found")
	}
	return guild, nil
}

func (f *fakeBridge) FetchChannel(ctx context.Context, guildID, channelID string) (bridge.Channel, error) {
	channel, ok := f.channels[channelID]
	if !ok {
		return bridge.Channel{}, apperr.NotFound("channel not found")
	}
	return channel, nil
}

func (f *fakeBridge) FetchChannels(ctx context.Context, guildID string) ([]bridge.Channel, error) {
	out := []bridge.Channel{}
	for _, channel := range f.channels {
		out = append(out, channel)
	}
	return out, nil
}

func (f *fakeBridge) FetchRoles(ctx context.Context, guildID string) ([]bridge.Role, error) {
	return f.roles, nil
}

func (f *fakeBridge) FetchMembers(ctx context.Context, guildID string) ([]bridge.Member, error) {
	return nil, nil
}

func (f *fakeBridge) SendToChannel(ctx context.Context, channelID string, payload bridge.Payload) error {
	f.sentChannel = channelID
	f.sentPayload = payload
	f.sendCount++
	return nil
}

func (f *fakeBridge) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return nil
}

func (f *fakeBridge) SendDirectMessage(ctx context.Context, userID, text string) error {
	return nil
}

func (f *fakeBridge) CreateRole(ctx context.Context, guildID, name string, color int) (bridge.Role, error) {
	role := bridge.Role{ID: "newrole", Name: name, Color: color}
	f.roles = append(f.roles, role)
	return role, nil
}

func (f *fakeBridge) CreateChannel(ctx context.Context, guildID, name string, channelType int) (bridge.Channel, error) {
	channel := bridge.Channel{ID: "newchan", Name: name, Type: channelType}
	f.channels[channel.ID] = channel
	return channel, nil
}

func (f *fakeBridge) DeleteChannel(ctx context.Context, guildID, channelID string) error {
	if _, ok := f.channels[channelID]; !ok {
		return apperr.NotFound("channel not found")
	}
	delete(f.channels, channelID)
	return nil
}

type testEnv struct {
	server *Server
	store  *storage.Store
	fake   *fakeBridge
	cookie *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fake := newFakeBridge()
	logger := zap.NewNop()
	cfg := config.DefaultConfig()
	cfg.HTTP.SessionMinutes = 60

	server := NewServer(
		cfg,
		logger,
		store,
		fake,
		templates.New(store, fake, logger),
		analytics.New(store, fake, logger),
		audit.NewLogger(store, logger),
		NewHub(logger),
	)

	session := server.sessions.Create("42", "tester")
	cookie := &http.Cookie{Name: sessionCookie, Value: session.ID}

	return &testEnv{server: server, store: store, fake: fake, cookie: cookie}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.AddCookie(e.cookie)
	rec := httptest.NewRecorder()
	e.server.routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/server/1/channels", nil)
	rec := httptest.NewRecorder()
	env.server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetWelcomeCreatesDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/welcome/123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	settings := decodeBody[storage.WelcomeSettings](t, rec)
	if settings.ServerID != "123" || settings.WelcomeEnabled {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
}

func TestPutWelcomeValidatesChannel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPut, "/api/welcome/123", map[string]any{
		"welcomeEnabled":   true,
		"welcomeChannelId": "999",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	env.fake.channels["999"] = bridge.Channel{ID: "999", Name: "general"}
	rec = env.request(t, http.MethodPut, "/api/welcome/123", map[string]any{
		"welcomeEnabled":   true,
		"welcomeChannelId": "999",
		"welcomeMessage":   map[string]string{"message": "hi {{user}}"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored, found, err := env.store.GetWelcomeSettings(context.Background(), "123")
	if err != nil || !found {
		t.Fatalf("settings not stored: found=%v err=%v", found, err)
	}
	if !stored.WelcomeEnabled || stored.WelcomeChannelID != "999" {
		t.Fatalf("unexpected stored settings: %+v", stored)
	}
	if stored.WelcomeMessage.Message != "hi {{user}}" {
		t.Fatalf("message not stored: %+v", stored.WelcomeMessage)
	}
}

func TestTestWelcomePrefixesMessage(t *testing.T) {
	env := newTestEnv(t)
	env.fake.guilds["123"] = bridge.Guild{ID: "123", Name: "Test", MemberCount: 10}
	env.fake.channels["555"] = bridge.Channel{ID: "555"}

	err := env.store.UpsertWelcomeSettings(context.Background(), storage.WelcomeSettings{
		ServerID: "123",
		WelcomeMessage: render.MessageContent{
			Message: "welcome {{user.mention}}",
			Embed:   &render.Embed{Title: "{{server}}", Thumbnail: "{{user.avatar}}"},
		},
	})
	if err != nil {
		t.Fatalf("upsert settings: %v", err)
	}

	rec := env.request(t, http.MethodPost, "/api/welcome/123/test", map[string]string{
		"type":      "welcome",
		"channelId": "555",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	want := "**[TEST MESSAGE]**\nwelcome <@42>"
	if env.fake.sentPayload.Content != want {
		t.Fatalf("expected %q, got %q", want, env.fake.sentPayload.Content)
	}
	if env.fake.sentPayload.Embed.Title != "Test" {
		t.Fatalf("embed title not rendered: %+v", env.fake.sentPayload.Embed)
	}
	if env.fake.sentPayload.Embed.Thumbnail != "" {
		t.Fatalf("expected thumbnail substituted to empty, got %q", env.fake.sentPayload.Embed.Thumbnail)
	}
}

func TestSendMessageValidatesIDs(t *testing.T) {
	env := newTestEnv(t)
	env.fake.channels["555"] = bridge.Channel{ID: "555"}

	rec := env.request(t, http.MethodPost, "/api/server/abc/message", map[string]string{
		"channelId": "555",
		"message":   "hello",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad guild id, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/server/123/message", map[string]string{
		"channelId": "555",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", rec.Code)
	}

	rec = env.request(t, http.MethodPost, "/api/server/123/message", map[string]string{
		"channelId": "555",
		"message":   "hello",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.fake.sentChannel != "555" || env.fake.sentPayload.Content != "hello" {
		t.Fatalf("message not sent: channel=%s payload=%+v", env.fake.sentChannel, env.fake.sentPayload)
	}
}

func TestTemplateLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.fake.guilds["123"] = bridge.Guild{ID: "123", Name: "Acme", MemberCount: 7}
	env.fake.channels["555"] = bridge.Channel{ID: "555"}

	rec := env.request(t, http.MethodPost, "/api/templates/123", map[string]any{
		"name":     "greeting",
		"category": "welcome",
		"content":  map[string]string{"message": "hello from {{server.name}}"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[storage.MessageTemplate](t, rec)
	if created.ID == "" || created.Category != "welcome" {
		t.Fatalf("unexpected created template: %+v", created)
	}

	rec = env.request(t, http.MethodPost, "/api/templates/123/"+created.ID+"/use", map[string]string{
		"channelId": "555",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.fake.sentPayload.Content != "hello from Acme" {
		t.Fatalf("template not rendered: %q", env.fake.sentPayload.Content)
	}

	rec = env.request(t, http.MethodGet, "/api/templates/123/"+created.ID, nil)
	fetched := decodeBody[storage.MessageTemplate](t, rec)
	if fetched.UsageCount != 1 {
		t.Fatalf("expected usage 1, got %d", fetched.UsageCount)
	}

	rec = env.request(t, http.MethodDelete, "/api/templates/123/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = env.request(t, http.MethodGet, "/api/templates/123/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestTemplateCreateRequiresContent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/templates/123", map[string]any{
		"name": "empty",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "message or embed") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestLicenseCreateDefaultsExpiry(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/licenses", map[string]string{
		"key":      "ABC-123",
		"serverId": "123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	license := decodeBody[storage.License](t, rec)
	if license.Key != "ABC-123" {
		t.Fatalf("unexpected license: %+v", license)
	}
	expectedExpiry := time.Now().AddDate(1, 0, 0)
	if license.ExpiresAt.Before(expectedExpiry.Add(-time.Hour)) || license.ExpiresAt.After(expectedExpiry.Add(time.Hour)) {
		t.Fatalf("expected expiry about a year out, got %v", license.ExpiresAt)
	}

	rec = env.request(t, http.MethodGet, "/api/licenses/123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServerDetailsIncludeLicense(t *testing.T) {
	env := newTestEnv(t)
	env.fake.guilds["123"] = bridge.Guild{ID: "123", Name: "Acme", MemberCount: 3}

	_, err := env.store.CreateLicense(context.Background(), storage.License{
		Key:       "KEY-1",
		ServerID:  "123",
		ExpiresAt: time.Now().AddDate(1, 0, 0),
	})
	if err != nil {
		t.Fatalf("create license: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/api/servers/123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	details := decodeBody[map[string]any](t, rec)
	if details["name"] != "Acme" {
		t.Fatalf("unexpected details: %v", details)
	}
	if details["license"] == nil {
		t.Fatalf("expected license summary, got %v", details)
	}
}

func TestBotSettingsFindOrCreate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/server/123/botsettings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	settings := decodeBody[storage.BotSettings](t, rec)
	if settings.Prefix != "!" || settings.Language != "en" {
		t.Fatalf("unexpected defaults: %+v", settings)
	}

	rec = env.request(t, http.MethodPost, "/api/server/123/botsettings", map[string]string{
		"prefix":   "?",
		"language": "pl",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	updated := decodeBody[storage.BotSettings](t, rec)
	if updated.Prefix != "?" || updated.Language != "pl" {
		t.Fatalf("unexpected update: %+v", updated)
	}
}

func TestAnalyticsSummaryRoute(t *testing.T) {
	env := newTestEnv(t)
	env.fake.guilds["123"] = bridge.Guild{ID: "123", Name: "Acme", MemberCount: 9, ChannelCount: 2, RoleCount: 1}

	if err := env.store.RecordMessage(context.Background(), "123", storage.Day(time.Now()), "c1", "u1"); err != nil {
		t.Fatalf("record message: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/api/analytics/123/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	summary := decodeBody[analytics.Summary](t, rec)
	if summary.ServerName != "Acme" || summary.TodayMessages != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestUnknownGuildReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/servers/123", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
