package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	ua "github.com/mssola/user_agent"
)

// ClientInfo identifies the caller of a booking operation for the audit trail
type ClientInfo struct {
	IP        string
	UserAgent string
}

// DeviceInfo is the parsed form of a User-Agent string
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
	Platform   string `json:"platform"` // android, ios, windows, mac, linux
}

// ClientFromRequest extracts the caller's address and user agent.
// X-Real-IP wins, then the first public address in X-Forwarded-For,
// then gin's ClientIP.
func ClientFromRequest(c *gin.Context) ClientInfo {
	userAgent := c.Request.UserAgent()
	if userAgent == "" {
		userAgent = "Unknown"
	}
	return ClientInfo{IP: realIP(c), UserAgent: userAgent}
}

func realIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); isPublicIP(ip) {
		return ip
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			if ip := strings.TrimSpace(part); isPublicIP(ip) {
				return ip
			}
		}
	}

	return c.ClientIP()
}

func isPublicIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified()
}

// ParseUserAgent extracts device information from a User-Agent string
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown", Platform: "unknown"}
	}

	parser := ua.New(userAgent)
	info := DeviceInfo{
		DeviceType: "desktop",
		OS:         "Unknown",
		Browser:    "Unknown",
		IsBot:      parser.Bot(),
		Platform:   "unknown",
	}

	if parser.Mobile() {
		info.DeviceType = "mobile"
		if isTablet(userAgent) {
			info.DeviceType = "tablet"
		}
	}

	os := parser.OSInfo()
	if os.Name != "" {
		info.OS = strings.TrimSpace(os.Name + " " + os.Version)
		info.Platform = platformOf(os.Name)
	}

	if name, version := parser.Browser(); name != "" {
		info.Browser = strings.TrimSpace(name + " " + version)
	}

	return info
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, marker := range []string{"ipad", "tablet", "kindle", "nexus 7", "nexus 9", "nexus 10", "sm-t"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func platformOf(osName string) string {
	name := strings.ToLower(osName)
	switch {
	case strings.Contains(name, "android"):
		return "android"
	case strings.Contains(name, "iphone"), strings.Contains(name, "ios"), strings.Contains(name, "ipad"):
		return "ios"
	case strings.Contains(name, "windows"):
		return "windows"
	case strings.Contains(name, "mac os"), strings.Contains(name, "macos"):
		return "mac"
	case strings.Contains(name, "linux"), strings.Contains(name, "ubuntu"):
		return "linux"
	}
	return "unknown"
}
