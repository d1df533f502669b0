package config

const (
	EnvPrefix = "entregalo"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ENTREGALO_DB_DSN"
	EnvDBHost = "ENTREGALO_DB_HOST"
	EnvDBUser = "ENTREGALO_DB_USER"
	EnvDBName = "ENTREGALO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
