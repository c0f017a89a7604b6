package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix only matters for nested defaults.
const EnvPrefix = "BAZAARIO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv              = "BAZAARIO_APP_ENV"
	EnvDBDSN               = "BAZAARIO_DB_DSN"
	EnvDBHost              = "BAZAARIO_DB_HOST"
	EnvDBUser              = "BAZAARIO_DB_USER"
	EnvDBName              = "BAZAARIO_DB_NAME"
	EnvRedisURL            = "BAZAARIO_REDIS_URL"
	EnvGCPProjectID        = "BAZAARIO_GCP_PROJECT_ID"
	EnvPubSubSettlement    = "BAZAARIO_PUBSUB_SETTLEMENT_TOPIC"
	EnvPubSubSettlementSub = "BAZAARIO_PUBSUB_SETTLEMENT_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
