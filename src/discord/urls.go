package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var urlRegex = regexp.MustCompile(`<?https?://[^\s\[\]()<>]+>?`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
func WrapURLsNoEmbed(text string) string {
	return urlRegex.ReplaceAllStringFunc(text, func(url string) string {
		if strings.HasPrefix(url, "<") && strings.HasSuffix(url, ">") {
			return url
		}
		url = strings.TrimPrefix(url, "<")
		trimmed := strings.TrimRight(url, ".,;:!?)")
		return fmt.Sprintf("<%s>", trimmed) + url[len(trimmed):]
	})
}

// Truncate shortens value to at most limit runes, marking the cut with an ellipsis.
func Truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
