package detect

import (
	"os"
	"strings"
	"time"
)

// LocalZone returns the host's IANA zone name from $TZ or the /etc/localtime
// link, or "" when neither names a zone the database knows.
func LocalZone() string {
	return localZone(os.Getenv, os.Readlink)
}

func localZone(getenv func(string) string, readlink func(string) (string, error)) string {
	if tz := strings.TrimPrefix(strings.TrimSpace(getenv("TZ")), ":"); tz != "" {
		if _, err := loadZone(tz); err == nil {
			return tz
		}
	}

	if name := time.Local.String(); name != "Local" && name != "" {
		if _, err := loadZone(name); err == nil {
			return name
		}
	}

	target, err := readlink("/etc/localtime")
	if err != nil {
		return ""
	}
	const marker = "zoneinfo/"
	i := strings.LastIndex(target, marker)
	if i < 0 {
		return ""
	}
	zone := target[i+len(marker):]
	if _, err := loadZone(zone); err != nil {
		return ""
	}
	return zone
}
