package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmitrijs2005/uploadvault/internal/logging"
	"github.com/dmitrijs2005/uploadvault/internal/notifier"
)

func main() {
	cfg, err := notifier.ConfigFromEnv()
	if err != nil {
		log.Fatalf("%v", err)
	}

	n := notifier.New(cfg, nil, logging.NewJSONLogger(os.Stdout, cfg.Verbose))
	lambda.Start(n.Handle)
}
