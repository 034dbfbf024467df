package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "probe":
		return probeTemplate, nil
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

const probeTemplate = `id = "probe.local"
addr = ":7400"
admin_listen_addr = "127.0.0.1:7401"

read_timeout = "15s"
write_timeout = "15s"
# Undecoded bytes held per session before it is dropped.
max_buffered_bytes = 8388608
max_sessions = 64
echo = true
# Required as a bearer token on /tunnel when set.
# tunnel_token = ""

# Both ends must agree. Defaults match the standard wire format.
byte_order = "little"
int_encoding = "varint"
`
