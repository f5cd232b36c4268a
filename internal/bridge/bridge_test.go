package bridge

import (
	"context"
	"testing"
	"time"

	"guildpanel/internal/render"
)

func TestParseHexColor(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"#00ff00", 0x00ff00},
		{"ff0000", 0xff0000},
		{"#000000", 0},
		{"", 0},
		{"not-a-color", 0},
	}
	for _, tc := range cases {
		if got := parseHexColor(tc.in); got != tc.want {
			t.Fatalf("parseHexColor(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestPayloadEmbedFallbackColor(t *testing.T) {
	payload := PayloadFrom(render.MessageContent{
		Embed: &render.Embed{Title: "hi"},
	}, "#00ff00")

	embed := payloadEmbed(payload)
	if embed.Color != 0x00ff00 {
		t.Fatalf("expected fallback color, got %d", embed.Color)
	}

	payload.Embed.Color = "#112233"
	embed = payloadEmbed(payload)
	if embed.Color != 0x112233 {
		t.Fatalf("expected explicit color to win, got %d", embed.Color)
	}
}

func TestLimiterAllowsBurstThenDelays(t *testing.T) {
	l := newLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.wait(ctx, "messages"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	if delay := l.reserve("messages"); delay <= 0 {
		t.Fatalf("expected a delay once the bucket is drained, got %v", delay)
	}
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	l := newLimiter()

	for i := 0; i < 6; i++ {
		l.reserve("messages")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := l.wait(ctx, "messages"); err == nil {
		t.Fatalf("expected context error while waiting")
	}
}
