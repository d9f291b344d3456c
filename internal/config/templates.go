package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host":
		return hostTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hostTemplate = `name = "glichost"
addr = ":9400"
host_origin = "chrome://glic"
client_origins = ["http://localhost:3000"]
auth_token = "temp-auth-key"

[browser]
version = "1.0.0.0"
store_path = "./glichost.db"
fetch_pages = true
fetch_timeout = "10s"
min_width = 200
min_height = 200
max_width = 3840
max_height = 2160

[transport]
handshake_timeout = "5s"
write_timeout = "10s"
ping_interval = "20s"
max_payload_bytes = 8388608
`

const clientTemplate = `url = "ws://localhost:9400/glic/ws"
origin = "http://localhost:3000"
host_origin = "chrome://glic"
auth_token = "temp-auth-key"
dial_attempts = 0
log_level = "info"
`
