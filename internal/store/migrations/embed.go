// Package migrations embeds the gateway's goose SQL migrations, mirroring
// internal/db/migrations in the teacher (embed.FS handed to
// goose.SetBaseFS), but with the gateway's own nonce_snapshots schema
// instead of the L2 character/item tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
