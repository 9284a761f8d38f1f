// Package duelclient is the Darknet Duel top-up client.
package duelclient

import "embed"

// MigrationsFS holds the purchase journal schema.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
