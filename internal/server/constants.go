// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection sliding window for inbound WebSocket commands
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Outbound queue per WebSocket client; messages beyond it are dropped
	ClientSendBuffer = 32

	// Deadline for a single WebSocket write
	WriteTimeout = 5 * time.Second

	// Request body cap for JSON endpoints
	MaxBodyBytes = 64 << 10
)
