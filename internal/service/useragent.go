package service

import "strings"

const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	BrowserOther  = "Other"
)

type uaRule struct {
	token string
	label string
}

// Evaluated top to bottom, first match wins. Chrome must stay ahead of
// Safari because Chrome user agents also carry the Safari token.
var browserRules = []uaRule{
	{"Chrome", "Chrome"},
	{"Firefox", "Firefox"},
	{"Safari", "Safari"},
	{"Edge", "Edge"},
	{"Opera", "Opera"},
}

var deviceRules = []uaRule{
	{"Mobile", DeviceMobile},
}

func matchRule(rules []uaRule, ua, fallback string) string {
	for _, r := range rules {
		if strings.Contains(ua, r.token) {
			return r.label
		}
	}
	return fallback
}

// ParseUserAgent returns the device type and browser for a user-agent string.
func ParseUserAgent(ua string) (device, browser string) {
	return matchRule(deviceRules, ua, DeviceDesktop), matchRule(browserRules, ua, BrowserOther)
}
