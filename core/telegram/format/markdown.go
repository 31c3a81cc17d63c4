package format

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
)

// ParseMode selects how Telegram renders outgoing text.
type ParseMode string

const (
	// Plain sends text without entity parsing.
	Plain ParseMode = ""
	// Markdown is Telegram's legacy Markdown.
	Markdown ParseMode = "Markdown"
	// MarkdownV2 is Telegram's strict Markdown dialect.
	MarkdownV2 ParseMode = "MarkdownV2"
	// HTML enables the HTML subset.
	HTML ParseMode = "HTML"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2Version denotes Telegram markdown version 2.
	MarkdownV2Version = 2
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile("([" + classEscape(mdV2Specials) + "])")
)

// classEscape backslash-escapes every rune so that '-' and ']' stay literal
// inside a character class.
func classEscape(chars string) string {
	out := make([]byte, 0, 2*len(chars))
	for i := 0; i < len(chars); i++ {
		out = append(out, '\\', chars[i])
	}
	return string(out)
}

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2Version:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// EscapeMD escapes text for legacy Markdown; it never fails.
func EscapeMD(text string) string {
	out, _ := EscapeMarkdown(text, MarkdownV1)
	return out
}

// Mention renders an HTML user mention; the name falls back to "there".
func Mention(userID int64, name string) string {
	if name == "" {
		name = "there"
	}
	if userID == 0 {
		return html.EscapeString(name)
	}
	return `<a href="tg://user?id=` + strconv.FormatInt(userID, 10) + `">` + html.EscapeString(name) + `</a>`
}
