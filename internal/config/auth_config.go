package config

import (
	"path/filepath"
	"strconv"
	"time"
)

type Auth struct{}

var _ AuthConfig = Auth{}

// GetAPIBaseURL is the school-management REST API. Empty means the shell runs against the
// in-memory backend.
func (Auth) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "")
}

func (Auth) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv("API_TIMEOUT", "15s"))
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// GetAuthDisabled bypasses both route guards. Local development only.
func (Auth) GetAuthDisabled() bool {
	disabled, err := strconv.ParseBool(GetEnv("AUTH_DISABLED", "false"))
	if err != nil {
		return false
	}
	return disabled
}

func (Auth) GetTokenSigningSecret() string {
	return GetEnv("TOKEN_SIGNING_SECRET", "dev-signing-secret-change-me")
}

// GetInstitutionsFile lists the institution codes accepted by the institution login when
// running against a real API.
func (Auth) GetInstitutionsFile() string {
	return GetEnv("INSTITUTIONS_FILE", filepath.Join(EnvVars{}.GetDataFolder(), "institutions.json"))
}
