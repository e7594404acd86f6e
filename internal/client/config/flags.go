package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/flagx"
)

// ValueFlags lists the flags that consume a value. The CLI uses it to tell
// flag values apart from positional arguments.
var ValueFlags = []string{"-a", "-t", "-ctx", "-timeout", "-attempts", "-history", "-c", "-config"}

// parseFlags populates Config fields from command-line flags.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-ctx", "-timeout", "-attempts", "-history"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.RequestContext, "ctx", cfg.RequestContext, "JSON request context")
	timeout := fs.Int("timeout", int(cfg.CommandTimeout.Seconds()), "command timeout (in seconds)")
	fs.IntVar(&cfg.ConfirmAttempts, "attempts", cfg.ConfirmAttempts, "confirmation attempts")
	fs.StringVar(&cfg.HistoryPath, "history", cfg.HistoryPath, "local upload history database (empty disables)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.CommandTimeout = time.Duration(*timeout) * time.Second
}
