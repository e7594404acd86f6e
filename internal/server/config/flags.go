package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/flagx"
)

var valueFlags = []string{
	"-access-key-id", "-secret-access-key", "-name", "-region", "-endpoint",
	"-upload-expires", "-download-expires",
	"-a", "-w", "-d", "-s",
	"-webhook-url", "-webhook-secret", "-artifact",
}

var switchFlags = []string{
	"-path-style", "-skip-permission-checks", "-v", "-production",
	"-auto-confirm", "-enforce-size", "-provision",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-access-key-id, -secret-access-key   store credentials
//	-name string                         instance name
//	-region, -endpoint string            store location
//	-path-style                          path-style addressing (emulators)
//	-upload-expires, -download-expires   presigned URL lifetime, seconds
//	-skip-permission-checks              bypass the permission gate
//	-v                                   verbose logging
//	-production                          random bucket suffix
//	-auto-confirm                        mark uploads uploaded on issue
//	-enforce-size                        reject size mismatches on confirm
//	-a string                            gRPC bind address
//	-w string                            HTTP bind address
//	-d string                            PostgreSQL DSN ("" for in-memory)
//	-s string                            JWT HMAC secret key
//	-provision                           reconcile the notifier at startup (use -provision=false to skip)
//	-webhook-url, -webhook-secret        notifier callback
//	-artifact string                     notifier zip or bootstrap binary
//
// Args are filtered with flagx.FilterArgs so -c/-config and unknown flags
// don't trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], valueFlags, switchFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.AccessKeyID, "access-key-id", config.AccessKeyID, "access key id")
	fs.StringVar(&config.SecretAccessKey, "secret-access-key", config.SecretAccessKey, "secret access key")
	fs.StringVar(&config.Name, "name", config.Name, "instance name")
	fs.StringVar(&config.Region, "region", config.Region, "region")
	fs.StringVar(&config.Endpoint, "endpoint", config.Endpoint, "object store endpoint override")
	fs.BoolVar(&config.ForcePathStyle, "path-style", config.ForcePathStyle, "use path-style addressing")

	uploadExpires := fs.Int("upload-expires", int(config.UploadExpiresIn.Seconds()), "upload URL expiry (in seconds)")
	downloadExpires := fs.Int("download-expires", int(config.DownloadExpiresIn.Seconds()), "download URL expiry (in seconds)")

	fs.BoolVar(&config.SkipPermissionChecks, "skip-permission-checks", config.SkipPermissionChecks, "skip permission checks")
	fs.BoolVar(&config.Verbose, "v", config.Verbose, "verbose logging")
	fs.BoolVar(&config.Production, "production", config.Production, "production bucket naming")
	fs.BoolVar(&config.AutoConfirmUploads, "auto-confirm", config.AutoConfirmUploads, "confirm uploads immediately")
	fs.BoolVar(&config.EnforceDeclaredSize, "enforce-size", config.EnforceDeclaredSize, "reject objects whose size differs from the declared size")

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.BoolVar(&config.Provision, "provision", config.Provision, "provision the notifier function")
	fs.StringVar(&config.WebhookURL, "webhook-url", config.WebhookURL, "webhook URL called by the notifier")
	fs.StringVar(&config.WebhookSecret, "webhook-secret", config.WebhookSecret, "webhook shared secret")
	fs.StringVar(&config.FunctionArtifact, "artifact", config.FunctionArtifact, "notifier artifact path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.UploadExpiresIn = time.Duration(*uploadExpires) * time.Second
	config.DownloadExpiresIn = time.Duration(*downloadExpires) * time.Second
}
