// Package query serves account and operation lookups from the projection
// store. It never reads the event journal.
package query
