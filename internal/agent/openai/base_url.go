package openai

import (
	"net/url"
	"strings"
)

var endpointSuffixes = []string{"/chat/completions", "/completions", "/responses"}

// normalizeBaseURL 去掉误填的接口路径与末尾斜杠，保留用户给出的前缀（例如 /api/v1）。
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return strings.TrimRight(raw, "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	for _, suffix := range endpointSuffixes {
		if strings.HasSuffix(path, suffix) {
			path = strings.TrimSuffix(path, suffix)
			break
		}
	}
	parsed.Path = strings.TrimRight(path, "/")
	return parsed.String()
}
