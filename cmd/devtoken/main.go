// Command devtoken mints an access token for local testing.
//
//	devtoken -u alice -s secretKey -ttl 1h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/server/auth"
)

func main() {
	fs := flag.NewFlagSet("devtoken", flag.ExitOnError)
	user := fs.String("u", "", "user id")
	secret := fs.String("s", os.Getenv("UPLOADVAULT_SECRET_KEY"), "signing secret")
	ttl := fs.Duration("ttl", time.Hour, "token validity")
	_ = fs.Parse(os.Args[1:])

	if *user == "" || *secret == "" {
		fs.Usage()
		os.Exit(2)
	}

	token, err := auth.GenerateToken(*user, []byte(*secret), *ttl)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(token)
}
