package instance

import "os"

// GetID returns the gateway instance identifier for log correlation,
// falling back to the hostname, then a fixed default.
func GetID() string {
	if id := os.Getenv("ANAND_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "gateway-0"
}
