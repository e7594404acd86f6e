package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/flagx"
	"github.com/dmitrijs2005/uploadvault/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so "90s" and integer nanoseconds both parse. Booleans are
// pointers so an explicit false can override a true default.
type JsonConfig struct {
	AccessKeyID          string         `json:"access_key_id"`
	SecretAccessKey      string         `json:"secret_access_key"`
	Name                 string         `json:"name"`
	Region               string         `json:"region"`
	Endpoint             string         `json:"endpoint"`
	ForcePathStyle       *bool          `json:"force_path_style"`
	UploadExpiresIn      timex.Duration `json:"upload_expires_in"`
	DownloadExpiresIn    timex.Duration `json:"download_expires_in"`
	SkipPermissionChecks *bool          `json:"skip_permission_checks"`
	Verbose              *bool          `json:"verbose"`
	Production           *bool          `json:"production"`
	AutoConfirmUploads   *bool          `json:"auto_confirm_uploads"`
	EnforceDeclaredSize  *bool          `json:"enforce_declared_size"`

	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	DatabaseDSN      string `json:"database_dsn"`
	SecretKey        string `json:"secret_key"`

	Provision        *bool          `json:"provision"`
	WebhookURL       string         `json:"webhook_url"`
	WebhookSecret    string         `json:"webhook_secret"`
	FunctionArtifact string         `json:"function_artifact"`
	FunctionRuntime  string         `json:"function_runtime"`
	FunctionHandler  string         `json:"function_handler"`
	FunctionMemoryMB int32          `json:"function_memory_mb"`
	FunctionTimeout  timex.Duration `json:"function_timeout"`
	ReadyTimeout     timex.Duration `json:"ready_timeout"`
	ReadyInterval    timex.Duration `json:"ready_interval"`
}

// parseJson overlays values from the file named by -c/-config. Absent or
// zero fields keep their current value. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.AccessKeyID, c.AccessKeyID)
	setString(&config.SecretAccessKey, c.SecretAccessKey)
	setString(&config.Name, c.Name)
	setString(&config.Region, c.Region)
	setString(&config.Endpoint, c.Endpoint)
	setBool(&config.ForcePathStyle, c.ForcePathStyle)
	setDuration(&config.UploadExpiresIn, c.UploadExpiresIn)
	setDuration(&config.DownloadExpiresIn, c.DownloadExpiresIn)
	setBool(&config.SkipPermissionChecks, c.SkipPermissionChecks)
	setBool(&config.Verbose, c.Verbose)
	setBool(&config.Production, c.Production)
	setBool(&config.AutoConfirmUploads, c.AutoConfirmUploads)
	setBool(&config.EnforceDeclaredSize, c.EnforceDeclaredSize)

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)

	setBool(&config.Provision, c.Provision)
	setString(&config.WebhookURL, c.WebhookURL)
	setString(&config.WebhookSecret, c.WebhookSecret)
	setString(&config.FunctionArtifact, c.FunctionArtifact)
	setString(&config.FunctionRuntime, c.FunctionRuntime)
	setString(&config.FunctionHandler, c.FunctionHandler)
	if c.FunctionMemoryMB > 0 {
		config.FunctionMemoryMB = c.FunctionMemoryMB
	}
	setDuration(&config.FunctionTimeout, c.FunctionTimeout)
	setDuration(&config.ReadyTimeout, c.ReadyTimeout)
	setDuration(&config.ReadyInterval, c.ReadyInterval)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
