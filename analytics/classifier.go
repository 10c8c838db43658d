package analytics

import (
	"strings"

	"github.com/Dikshant-04/webapp/models"
)

// Agent is the coarse classification of a user agent string.
type Agent struct {
	DeviceType string
	Browser    string
	OS         string
}

type rule struct {
	keywords []string
	label    string
}

// Keyword tables are ordered: the first matching rule wins.
var (
	deviceRules = []rule{
		{[]string{"mobile", "android", "iphone"}, models.DeviceMobile},
		{[]string{"tablet", "ipad"}, models.DeviceTablet},
	}
	browserRules = []rule{
		{[]string{"chrome"}, "Chrome"},
		{[]string{"firefox"}, "Firefox"},
		{[]string{"safari"}, "Safari"},
		{[]string{"edge"}, "Edge"},
	}
	osRules = []rule{
		{[]string{"windows"}, "Windows"},
		{[]string{"mac"}, "MacOS"},
		{[]string{"linux"}, "Linux"},
		{[]string{"android"}, "Android"},
		{[]string{"ios", "iphone"}, "iOS"},
	}
)

// Classify derives device type, browser and OS from a user agent. Unknown
// agents are desktop with empty browser and OS.
func Classify(userAgent string) Agent {
	ua := strings.ToLower(userAgent)
	device := match(ua, deviceRules)
	if device == "" {
		device = models.DeviceDesktop
	}
	return Agent{
		DeviceType: device,
		Browser:    match(ua, browserRules),
		OS:         match(ua, osRules),
	}
}

func match(ua string, rules []rule) string {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(ua, kw) {
				return r.label
			}
		}
	}
	return ""
}
