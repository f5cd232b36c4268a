package render

import (
	"strconv"
	"strings"
)

// MessageContent is a renderable unit of communication: plain text, an
// embed, or both. Stored as JSON inside welcome settings and templates.
type MessageContent struct {
	Message string `json:"message,omitempty"`
	Embed   *Embed `json:"embed,omitempty"`
}

type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Footer      string `json:"footer,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// Clone returns a deep copy so rendering never aliases the stored record.
func (c MessageContent) Clone() MessageContent {
	out := c
	if c.Embed != nil {
		embed := *c.Embed
		out.Embed = &embed
	}
	return out
}

func (c MessageContent) Empty() bool {
	return c.Message == "" && c.Embed == nil
}

// Replacement binds one double-brace token to its current runtime value.
// Order matters: tokens are applied in slice order.
type Replacement struct {
	Token string
	Value string
}

// WelcomeVars builds the token set used by join/leave rendering.
func WelcomeVars(userTag, userMention, serverName string, memberCount int, avatarURL string) []Replacement {
	return []Replacement{
		{Token: "{{user}}", Value: userTag},
		{Token: "{{user.mention}}", Value: userMention},
		{Token: "{{server}}", Value: serverName},
		{Token: "{{memberCount}}", Value: strconv.Itoa(memberCount)},
		{Token: "{{user.avatar}}", Value: avatarURL},
	}
}

// DMVars builds the reduced token set used by welcome direct messages.
func DMVars(userTag, serverName string, memberCount int) []Replacement {
	return []Replacement{
		{Token: "{{user}}", Value: userTag},
		{Token: "{{server}}", Value: serverName},
		{Token: "{{memberCount}}", Value: strconv.Itoa(memberCount)},
	}
}

// TemplateVars builds the token set used by saved message templates.
func TemplateVars(serverName, serverIcon string, memberCount int) []Replacement {
	return []Replacement{
		{Token: "{{server.name}}", Value: serverName},
		{Token: "{{server.icon}}", Value: serverIcon},
		{Token: "{{server.members}}", Value: strconv.Itoa(memberCount)},
	}
}

// Render substitutes every recognized token in the content and returns a new
// MessageContent. The input is never mutated. Matching is literal and
// case-sensitive; unrecognized tokens pass through untouched.
//
// The embed thumbnail is the one deliberate exception: it is only replaced
// when the entire field equals a token exactly, so a thumbnail either becomes
// a full image URL or stays literal. Partial token occurrences inside the
// thumbnail are left alone.
func Render(content MessageContent, vars []Replacement) MessageContent {
	out := content.Clone()

	if out.Message != "" {
		out.Message = RenderText(out.Message, vars)
	}
	if out.Embed != nil {
		out.Embed.Title = RenderText(out.Embed.Title, vars)
		out.Embed.Description = RenderText(out.Embed.Description, vars)
		out.Embed.Footer = RenderText(out.Embed.Footer, vars)
		out.Embed.Thumbnail = renderExact(out.Embed.Thumbnail, vars)
	}
	return out
}

// RenderText substitutes tokens in a plain string. Used for the message body,
// embed text fields, and DM messages.
func RenderText(text string, vars []Replacement) string {
	for _, v := range vars {
		text = strings.ReplaceAll(text, v.Token, v.Value)
	}
	return text
}

func renderExact(text string, vars []Replacement) string {
	for _, v := range vars {
		if text == v.Token {
			return v.Value
		}
	}
	return text
}
