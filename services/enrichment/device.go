package enrichment

import "strings"

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

type DeviceInfo struct {
	DeviceType string
	OS         string
	Browser    string
	IsBot      bool
}

type token struct {
	needles []string
	name    string
}

var botTokens = []string{
	"bot", "crawler", "spider", "slurp", "headless", "curl/", "wget",
	"python-requests", "go-http-client", "okhttp", "facebookexternalhit", "preview",
}

// iOS tokens come before macOS: iPhone and iPad agents also carry "Mac OS X".
var osTokens = []token{
	{needles: []string{"iphone", "ipad", "ipod", "ios"}, name: "iOS"},
	{needles: []string{"android"}, name: "Android"},
	{needles: []string{"windows"}, name: "Windows"},
	{needles: []string{"cros"}, name: "ChromeOS"},
	{needles: []string{"mac os", "macintosh"}, name: "macOS"},
	{needles: []string{"linux", "x11"}, name: "Linux"},
}

// Order matters: Edge and Opera agents also contain "chrome", and nearly
// every agent contains "safari".
var browserTokens = []token{
	{needles: []string{"linkedinapp"}, name: "LinkedIn"},
	{needles: []string{"edg/", "edge/", "edga/", "edgios/"}, name: "Edge"},
	{needles: []string{"opr/", "opera"}, name: "Opera"},
	{needles: []string{"samsungbrowser"}, name: "Samsung Internet"},
	{needles: []string{"firefox", "fxios"}, name: "Firefox"},
	{needles: []string{"crios", "chrome", "chromium"}, name: "Chrome"},
	{needles: []string{"safari"}, name: "Safari"},
	{needles: []string{"msie", "trident"}, name: "Internet Explorer"},
}

// ParseUserAgent classifies a raw user agent with substring heuristics.
func ParseUserAgent(ua string) DeviceInfo {
	s := strings.ToLower(strings.TrimSpace(ua))
	info := DeviceInfo{DeviceType: DeviceUnknown, OS: "unknown", Browser: "unknown"}
	if s == "" {
		return info
	}

	info.IsBot = containsAny(s, botTokens...)
	info.OS = match(s, osTokens)
	info.Browser = match(s, browserTokens)
	if info.IsBot {
		return info
	}

	switch {
	case strings.Contains(s, "ipad") || strings.Contains(s, "tablet") || strings.Contains(s, "kindle") ||
		(strings.Contains(s, "android") && !strings.Contains(s, "mobile")):
		info.DeviceType = DeviceTablet
	case containsAny(s, "mobi", "iphone", "ipod", "android", "windows phone"):
		info.DeviceType = DeviceMobile
	case info.OS == "Windows" || info.OS == "macOS" || info.OS == "Linux" || info.OS == "ChromeOS":
		info.DeviceType = DeviceDesktop
	}

	return info
}

func match(s string, tokens []token) string {
	for _, t := range tokens {
		if containsAny(s, t.needles...) {
			return t.name
		}
	}
	return "unknown"
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
