// Package migrations embeds the SQL migration set that lays out the seven
// tables encoding the message lifecycle (messages_unattempted,
// messages_attempted, leases, attempts_failed, attempts_succeeded,
// attempts_dead, errors). The embedded files are applied by the migrator
// package via golang-migrate's iofs source driver — the Go analogue of the
// original implementation's sqlx::migrate!() macro.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
