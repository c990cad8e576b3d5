package utils

import (
	"strings"
)

// Slugify 转为 URL 友好的 slug，例如 "My Cool App!" -> "my-cool-app"。
// 非 ASCII 字母数字会被丢弃，结果为空时返回 fallback。
func Slugify(s, fallback string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if r == ' ' || r == '_' || r == '-' || r == '.' || r == '/' {
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 80 {
		out = strings.TrimRight(out[:80], "-")
	}
	if out == "" {
		return fallback
	}
	return out
}
