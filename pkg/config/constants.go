package config

const (
	EnvPrefix = "ADMESH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ADMESH_DB_DSN"
	EnvDBHost = "ADMESH_DB_HOST"
	EnvDBUser = "ADMESH_DB_USER"
	EnvDBName = "ADMESH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
