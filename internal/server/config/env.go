package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every recognised environment variable.
const EnvPrefix = "UPLOADVAULT_"

// parseEnv loads .env (if present) and overlays UPLOADVAULT_* variables.
// Malformed numeric or boolean values panic, matching the JSON and flag layers.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	envString("ACCESS_KEY_ID", &config.AccessKeyID)
	envString("SECRET_ACCESS_KEY", &config.SecretAccessKey)
	envString("NAME", &config.Name)
	envString("REGION", &config.Region)
	envString("ENDPOINT", &config.Endpoint)
	envBool("FORCE_PATH_STYLE", &config.ForcePathStyle)
	envSeconds("UPLOAD_EXPIRES_IN", &config.UploadExpiresIn)
	envSeconds("DOWNLOAD_EXPIRES_IN", &config.DownloadExpiresIn)
	envBool("SKIP_PERMISSION_CHECKS", &config.SkipPermissionChecks)
	envBool("VERBOSE", &config.Verbose)
	envBool("PRODUCTION", &config.Production)
	envBool("AUTO_CONFIRM_UPLOADS", &config.AutoConfirmUploads)
	envBool("ENFORCE_DECLARED_SIZE", &config.EnforceDeclaredSize)
	envString("GRPC_ADDR", &config.EndpointAddrGRPC)
	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	envBool("PROVISION", &config.Provision)
	envString("WEBHOOK_URL", &config.WebhookURL)
	envString("WEBHOOK_SECRET", &config.WebhookSecret)
	envString("FUNCTION_ARTIFACT", &config.FunctionArtifact)
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func envBool(name string, dst *bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

func envSeconds(name string, dst *time.Duration) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = time.Duration(n) * time.Second
}
