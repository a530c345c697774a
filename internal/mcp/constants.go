/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package mcp

import "time"

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "bq-data-agent"
	ServerVersion   = "1.0.0"
)

// Scanner buffer sizes for stdio JSON-RPC messages. Query results can be
// large, so the limit is generous.
const (
	ScannerInitialBufferSize = 64 * 1024
	ScannerMaxBufferSize     = 16 * 1024 * 1024
)

const (
	// SessionHeader carries the HTTP session id
	SessionHeader = "Mcp-Session-Id"

	// DefaultSessionIdle is how long an unused HTTP session is kept
	DefaultSessionIdle = time.Hour
)
