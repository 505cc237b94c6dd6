package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
}

var hostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?vimeo\.com/[0-9]+`),
	regexp.MustCompile(`^(?:https?://)?player\.vimeo\.com/video/[0-9]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?dailymotion\.com/video/[a-zA-Z0-9]+`),
	regexp.MustCompile(`^(?:https?://)?dai\.ly/[a-zA-Z0-9]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?tiktok\.com/@[^/]+/video/\d+`),
	regexp.MustCompile(`^(?:https?://)?vm\.tiktok\.com/[A-Za-z0-9]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?instagram\.com/(?:p|reel|tv)/[A-Za-z0-9_-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?(?:twitter|x)\.com/\w+/status/\d+`),
}

// Media container and manifest extensions accepted as direct links.
var directExtensions = []string{
	".mp4", ".m3u8", ".m3u", ".mpd", ".f4m", ".webm", ".mkv", ".mov", ".ts",
}

// NormalizeURL validates a submitted URL against the supported hosting
// patterns and direct media links, returning a canonical form. YouTube
// URLs collapse to the watch?v= shape so the same video maps to the
// same pipeline input regardless of the share link used.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url: %w", ErrInvalidURL)
	}

	for _, p := range youtubePatterns {
		if m := p.FindStringSubmatch(raw); len(m) > 1 {
			return "https://youtube.com/watch?v=" + m[1], nil
		}
	}
	for _, p := range hostPatterns {
		if p.MatchString(raw) {
			return raw, nil
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("unsupported url %q: %w", raw, ErrInvalidURL)
	}
	path := strings.ToLower(parsed.Path)
	query := strings.ToLower(parsed.RawQuery)
	for _, ext := range directExtensions {
		if strings.Contains(path, ext) || strings.Contains(query, ext) {
			return raw, nil
		}
	}
	return "", fmt.Errorf("unsupported url %q: %w", raw, ErrInvalidURL)
}
