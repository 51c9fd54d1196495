package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type AuthConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetAuthDisabled() bool
	GetTokenSigningSecret() string
	GetInstitutionsFile() string
}

type mainConfig struct {
	EnvVars
	Cors
	Auth
}

func New() Config {
	return mainConfig{}
}
