package archive

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"radreject/internal/ports"
)

type registryServer struct {
	BaseURL                 string `toml:"base_url"`
	Username                string `toml:"username"`
	Password                string `toml:"password"`
	PasswordEnv             string `toml:"password_env"`
	Active                  *bool  `toml:"active"`
	IncludeInRejectAnalysis *bool  `toml:"include_in_reject_analysis"`
	Primary                 bool   `toml:"primary"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
}

type registryFile struct {
	Version int                       `toml:"version"`
	Servers map[string]registryServer `toml:"servers"`
}

// LoadRegistry reads the archive server list. Servers are returned sorted by
// name; active and include_in_reject_analysis default to true.
func LoadRegistry(path string) ([]ports.ArchiveServer, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("archive registry file is required")
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(raw)
}

func ParseRegistry(raw []byte) ([]ports.ArchiveServer, error) {
	var file registryFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("unsupported archive registry version %d, expected 1", file.Version)
	}

	names := make([]string, 0, len(file.Servers))
	for name := range file.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	primaries := 0
	out := make([]ports.ArchiveServer, 0, len(names))
	for _, name := range names {
		entry := file.Servers[name]
		key := strings.TrimSpace(name)
		if key == "" {
			return nil, errors.New("servers: empty server name")
		}
		if strings.TrimSpace(entry.BaseURL) == "" {
			return nil, errors.New("servers." + key + ".base_url is required")
		}
		if entry.TimeoutSeconds < 0 {
			return nil, errors.New("servers." + key + ".timeout_seconds must be >= 0")
		}

		password := entry.Password
		if env := strings.TrimSpace(entry.PasswordEnv); env != "" {
			password = os.Getenv(env)
		}
		if entry.Primary {
			primaries++
		}

		out = append(out, ports.ArchiveServer{
			Name:                    key,
			BaseURL:                 strings.TrimRight(strings.TrimSpace(entry.BaseURL), "/"),
			Username:                entry.Username,
			Password:                password,
			Active:                  entry.Active == nil || *entry.Active,
			IncludeInRejectAnalysis: entry.IncludeInRejectAnalysis == nil || *entry.IncludeInRejectAnalysis,
			IsPrimary:               entry.Primary,
			Timeout:                 time.Duration(entry.TimeoutSeconds) * time.Second,
		})
	}
	if primaries > 1 {
		return nil, fmt.Errorf("servers: %d servers marked primary, at most one allowed", primaries)
	}
	return out, nil
}
