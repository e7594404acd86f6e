// Package migrations embeds the client history schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
