package config

// EnvPrefix is passed to envconfig; individual fields carry fully-qualified
// names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SOUQLY_DB_DSN"
	EnvDBHost = "SOUQLY_DB_HOST"
	EnvDBUser = "SOUQLY_DB_USER"
	EnvDBName = "SOUQLY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
