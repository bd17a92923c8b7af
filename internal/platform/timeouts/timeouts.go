// Package timeouts holds the durations shared by the account binaries.
package timeouts

import "time"

const (
	// GRPCDial caps the wait for a health endpoint to accept a connection and
	// report SERVING.
	GRPCDial = 2 * time.Second

	// HealthCheck bounds a single health Check call while waiting to serve.
	HealthCheck = time.Second

	// ReadHeader limits how long the HTTP API waits for request headers.
	ReadHeader = 5 * time.Second

	// Request bounds one HTTP API request, including the owner lookup and the
	// inline projection apply.
	Request = 30 * time.Second

	// OwnerLookup is the default timeout for owner directory calls.
	OwnerLookup = 5 * time.Second

	// Shutdown limits how long servers drain in-flight work on exit.
	Shutdown = 5 * time.Second
)
