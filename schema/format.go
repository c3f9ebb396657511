package schema

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"time"
)

var (
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	uuidRe     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
)

// checkFormat validates s against a named format. The second result is false
// when the format is not one we implement; unknown formats are silently
// accepted per the usual annotation-only treatment.
func checkFormat(format, s string) (string, bool) {
	switch format {
	case "date-time":
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Sprintf("%q is not a valid RFC 3339 date-time", s), true
		}
	case "date":
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Sprintf("%q is not a valid date", s), true
		}
	case "time":
		if _, err := time.Parse("15:04:05Z07:00", s); err != nil {
			return fmt.Sprintf("%q is not a valid time", s), true
		}
	case "email":
		if !emailRe.MatchString(s) {
			return fmt.Sprintf("%q is not a valid email address", s), true
		}
	case "uri":
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" {
			return fmt.Sprintf("%q is not a valid URI", s), true
		}
	case "uuid":
		if !uuidRe.MatchString(s) {
			return fmt.Sprintf("%q is not a valid UUID", s), true
		}
	case "ipv4":
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() == nil {
			return fmt.Sprintf("%q is not a valid IPv4 address", s), true
		}
	case "ipv6":
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() != nil {
			return fmt.Sprintf("%q is not a valid IPv6 address", s), true
		}
	case "hostname":
		if len(s) > 253 || !hostnameRe.MatchString(s) {
			return fmt.Sprintf("%q is not a valid hostname", s), true
		}
	default:
		return "", false
	}
	return "", true
}
