package storage

import (
	"context"
	"testing"
	"time"

	"guildpanel/internal/render"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestEnsureWelcomeSettingsCreatesDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.EnsureWelcomeSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("ensure welcome settings: %v", err)
	}
	if settings.WelcomeEnabled || settings.GoodbyeEnabled || settings.DMNewMembers {
		t.Fatalf("expected disabled defaults, got %+v", settings)
	}

	_, found, err := store.GetWelcomeSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get welcome settings: %v", err)
	}
	if !found {
		t.Fatalf("expected row to be persisted")
	}
}

func TestUpsertWelcomeSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings := WelcomeSettings{
		ServerID:         "g1",
		WelcomeEnabled:   true,
		WelcomeChannelID: "c1",
		WelcomeMessage: render.MessageContent{
			Message: "Hi {{user.mention}}",
			Embed:   &render.Embed{Title: "Welcome", Thumbnail: "{{user.avatar}}"},
		},
		DMNewMembers: true,
		DMMessage:    "Hello {{user}}",
		AutoRoleID:   "r1",
	}
	if err := store.UpsertWelcomeSettings(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	settings.WelcomeChannelID = "c2"
	if err := store.UpsertWelcomeSettings(ctx, settings); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, found, err := store.GetWelcomeSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatalf("expected settings row")
	}
	if got.WelcomeChannelID != "c2" {
		t.Fatalf("expected channel c2, got %q", got.WelcomeChannelID)
	}
	if got.WelcomeMessage.Message != "Hi {{user.mention}}" {
		t.Fatalf("unexpected message content %q", got.WelcomeMessage.Message)
	}
	if got.WelcomeMessage.Embed == nil || got.WelcomeMessage.Embed.Thumbnail != "{{user.avatar}}" {
		t.Fatalf("unexpected embed %+v", got.WelcomeMessage.Embed)
	}
}

func TestTemplateLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateTemplate(ctx, MessageTemplate{
		ServerID: "g1",
		Name:     "greeting",
		Category: CategoryWelcome,
		Content:  render.MessageContent{Message: "Server: {{server.name}}"},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	got, found, err := store.GetTemplate(ctx, "g1", created.ID)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if !found {
		t.Fatalf("expected template")
	}
	if got.UsageCount != 0 || got.LastUsed != nil {
		t.Fatalf("expected fresh usage state, got %+v", got)
	}

	before := time.Now().Add(-time.Second)
	if err := store.MarkTemplateUsed(ctx, "g1", created.ID, time.Now()); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	got, _, err = store.GetTemplate(ctx, "g1", created.ID)
	if err != nil {
		t.Fatalf("get after use: %v", err)
	}
	if got.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", got.UsageCount)
	}
	if got.LastUsed == nil || got.LastUsed.Before(before) {
		t.Fatalf("expected recent last_used, got %v", got.LastUsed)
	}

	deleted, err := store.DeleteTemplate(ctx, "g1", created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatalf("expected deletion")
	}
	if _, found, _ := store.GetTemplate(ctx, "g1", created.ID); found {
		t.Fatalf("expected template gone")
	}
}

func TestListTemplatesByCategory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, category := range []string{CategoryWelcome, CategoryRules, CategoryWelcome} {
		if _, err := store.CreateTemplate(ctx, MessageTemplate{
			ServerID: "g1",
			Name:     category,
			Category: category,
			Content:  render.MessageContent{Message: "x"},
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := store.ListTemplates(ctx, "g1", "all")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(all))
	}

	welcome, err := store.ListTemplates(ctx, "g1", CategoryWelcome)
	if err != nil {
		t.Fatalf("list welcome: %v", err)
	}
	if len(welcome) != 2 {
		t.Fatalf("expected 2 welcome templates, got %d", len(welcome))
	}

	other, err := store.ListTemplates(ctx, "g2", "")
	if err != nil {
		t.Fatalf("list other server: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no templates for other server, got %d", len(other))
	}
}

func TestAnalyticsCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := Day(time.Now())

	for i := 0; i < 3; i++ {
		if err := store.IncrementJoin(ctx, "g1", date); err != nil {
			t.Fatalf("increment join: %v", err)
		}
	}
	if err := store.IncrementLeave(ctx, "g1", date); err != nil {
		t.Fatalf("increment leave: %v", err)
	}
	if err := store.RecordMessage(ctx, "g1", date, "c1", "u1"); err != nil {
		t.Fatalf("record message: %v", err)
	}
	if err := store.RecordMessage(ctx, "g1", date, "c1", "u1"); err != nil {
		t.Fatalf("record message: %v", err)
	}
	if err := store.RecordMessage(ctx, "g1", date, "c2", "u2"); err != nil {
		t.Fatalf("record message: %v", err)
	}
	if err := store.SetMemberCount(ctx, "g1", date, 42); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	day, found, err := store.GetDailyAnalytics(ctx, "g1", date)
	if err != nil {
		t.Fatalf("get analytics: %v", err)
	}
	if !found {
		t.Fatalf("expected analytics row")
	}
	if day.JoinCount != 3 || day.LeaveCount != 1 {
		t.Fatalf("unexpected join/leave counts: %+v", day)
	}
	if day.MessagesCount != 3 {
		t.Fatalf("expected 3 messages, got %d", day.MessagesCount)
	}
	if day.TopChannels["c1"] != 2 || day.TopChannels["c2"] != 1 {
		t.Fatalf("unexpected top channels: %v", day.TopChannels)
	}
	if len(day.ActiveUsers) != 2 {
		t.Fatalf("expected 2 active users, got %v", day.ActiveUsers)
	}
	if day.MemberCount != 42 {
		t.Fatalf("expected member count 42, got %d", day.MemberCount)
	}
}

func TestLicenseLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateLicense(ctx, License{
		Key:       "KEY-1",
		ServerID:  "g1",
		ExpiresAt: time.Now().AddDate(1, 0, 0),
	})
	if err != nil {
		t.Fatalf("create license: %v", err)
	}

	byServer, found, err := store.GetLicenseByServer(ctx, "g1")
	if err != nil {
		t.Fatalf("get by server: %v", err)
	}
	if !found || byServer.Key != "KEY-1" {
		t.Fatalf("unexpected license %+v found=%v", byServer, found)
	}

	created.Key = "KEY-2"
	if err := store.UpdateLicense(ctx, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _, err := store.GetLicense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Key != "KEY-2" {
		t.Fatalf("expected KEY-2, got %q", updated.Key)
	}

	deleted, err := store.DeleteLicense(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
}

func TestEnsureBotSettingsDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings, err := store.EnsureBotSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("ensure bot settings: %v", err)
	}
	if settings.Prefix != "!" || settings.Language != "en" {
		t.Fatalf("unexpected defaults %+v", settings)
	}

	settings.Prefix = "?"
	if err := store.UpsertBotSettings(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	again, err := store.EnsureBotSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.Prefix != "?" {
		t.Fatalf("expected stored prefix, got %q", again.Prefix)
	}
}

func TestFindOrCreateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.FindOrCreateUser(ctx, "u1", "alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if first.IsAdmin {
		t.Fatalf("new users must not be admin")
	}

	second, err := store.FindOrCreateUser(ctx, "u1", "renamed")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if second.Username != "alice" {
		t.Fatalf("expected stored username, got %q", second.Username)
	}
}

func TestAuditLogRetention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := AuditLog{ServerID: "g1", UserID: "u1", Action: "welcome_update", Details: "old", CreatedAt: time.Now().AddDate(0, 0, -30)}
	recent := AuditLog{ServerID: "g1", UserID: "u1", Action: "template_use", Details: "recent", CreatedAt: time.Now()}
	if err := store.AddAuditLog(ctx, old); err != nil {
		t.Fatalf("add old: %v", err)
	}
	if err := store.AddAuditLog(ctx, recent); err != nil {
		t.Fatalf("add recent: %v", err)
	}

	if err := store.CleanupAuditLogs(ctx, 14); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", time.Now().AddDate(0, 0, -60))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].Details != "recent" {
		t.Fatalf("expected only recent log, got %+v", logs)
	}
}
