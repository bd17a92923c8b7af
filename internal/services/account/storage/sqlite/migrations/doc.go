// Package migrations embeds the SQL schema history of the account service's
// SQLite databases.
package migrations
