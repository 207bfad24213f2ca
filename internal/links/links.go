// Package links recognises video links from the supported hosting platforms.
//
// Matching is plain substring search and is case-sensitive: "YOUTU.BE/x" is not
// recognised and hosts are never canonicalised.
package links

import (
	"regexp"
	"strings"
)

type Platform string

const (
	PlatformUnknown   Platform = ""
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformPinterest Platform = "pinterest"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformX         Platform = "x"
)

type pattern struct {
	substr   string
	platform Platform
}

// Порядок важен: PlatformOf возвращает первое совпадение.
var patterns = []pattern{
	{"youtube.com/", PlatformYouTube},
	{"youtu.be/", PlatformYouTube},
	{"instagram.com/reel/", PlatformInstagram},
	{"instagram.com/p/", PlatformInstagram},
	{"tiktok.com/", PlatformTikTok},
	{"pinterest.com/", PlatformPinterest},
	{"pin.it/", PlatformPinterest},
	{"linkedin.com/", PlatformLinkedIn},
	{"x.com/", PlatformX},
}

var linkRe = buildLinkRegexp()

func buildLinkRegexp() *regexp.Regexp {
	alts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		alts = append(alts, regexp.QuoteMeta(p.substr))
	}
	return regexp.MustCompile(`\S*(?:` + strings.Join(alts, "|") + `)\S*`)
}

// IsSupported reports whether the trimmed text contains an allow-listed link.
func IsSupported(text string) bool {
	text = strings.TrimSpace(text)
	for _, p := range patterns {
		if strings.Contains(text, p.substr) {
			return true
		}
	}
	return false
}

// Extract returns the first whitespace-delimited token carrying a supported link.
func Extract(text string) (string, bool) {
	m := linkRe.FindString(text)
	return m, m != ""
}

func PlatformOf(url string) Platform {
	for _, p := range patterns {
		if strings.Contains(url, p.substr) {
			return p.platform
		}
	}
	return PlatformUnknown
}
