package config

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = "TALLYPOS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TALLYPOS_DB_DSN"
	EnvDBHost = "TALLYPOS_DB_HOST"
	EnvDBUser = "TALLYPOS_DB_USER"
	EnvDBName = "TALLYPOS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
