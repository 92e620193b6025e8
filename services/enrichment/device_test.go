package enrichment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		device  string
		os      string
		browser string
		bot     bool
	}{
		{
			name:    "iphone safari",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			device:  DeviceMobile,
			os:      "iOS",
			browser: "Safari",
		},
		{
			name:    "ipad chrome",
			ua:      "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0.6099.119 Mobile/15E148 Safari/604.1",
			device:  DeviceTablet,
			os:      "iOS",
			browser: "Chrome",
		},
		{
			name:    "linkedin in-app on iphone",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 [LinkedInApp]/9.29.8",
			device:  DeviceMobile,
			os:      "iOS",
			browser: "LinkedIn",
		},
		{
			name:    "mac safari",
			ua:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
			device:  DeviceDesktop,
			os:      "macOS",
			browser: "Safari",
		},
		{
			name:    "windows edge",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51",
			device:  DeviceDesktop,
			os:      "Windows",
			browser: "Edge",
		},
		{
			name:    "android phone",
			ua:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
			device:  DeviceMobile,
			os:      "Android",
			browser: "Chrome",
		},
		{
			name:    "android tablet",
			ua:      "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			device:  DeviceTablet,
			os:      "Android",
			browser: "Chrome",
		},
		{
			name:    "linux firefox",
			ua:      "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			device:  DeviceDesktop,
			os:      "Linux",
			browser: "Firefox",
		},
		{
			name:    "googlebot",
			ua:      "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			device:  DeviceUnknown,
			os:      "unknown",
			browser: "unknown",
			bot:     true,
		},
		{
			name:    "headless chrome",
			ua:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/124.0.0.0 Safari/537.36",
			device:  DeviceUnknown,
			os:      "Linux",
			browser: "Chrome",
			bot:     true,
		},
		{
			name:    "empty",
			ua:      "",
			device:  DeviceUnknown,
			os:      "unknown",
			browser: "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseUserAgent(tc.ua)
			require.Equal(t, tc.device, got.DeviceType)
			require.Equal(t, tc.os, got.OS)
			require.Equal(t, tc.browser, got.Browser)
			require.Equal(t, tc.bot, got.IsBot)
		})
	}
}

func TestParseUserAgentNeverReportsMacOSForIPhone(t *testing.T) {
	ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15"
	require.Equal(t, "iOS", ParseUserAgent(ua).OS)
}
