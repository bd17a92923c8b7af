package migrations

import "embed"

// EventsFS holds the event journal, outbox and day counter schema.
//
//go:embed events/*.sql
var EventsFS embed.FS

// ProjectionsFS holds the read model schema.
//
//go:embed projections/*.sql
var ProjectionsFS embed.FS
