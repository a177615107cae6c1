/*
Package log provides structured logging for the sync core using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

The logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("transport")                │          │
	│  │  - WithNoteID("note-abc123")                 │          │
	│  │  - WithReplicaActor("device-xyz")            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "transport",                │          │
	│  │    "time": "2026-01-13T10:30:00Z",          │          │
	│  │    "message": "streaming sync connected"    │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-01-13T10:30:00Z INF streaming sync connected component=transport │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all packages in this module
  - Thread-safe concurrent writes

Log Levels:
  - Debug: detailed debugging information
  - Info: general informational messages
  - Warn: warning messages (potential issues)
  - Error: error messages (operation failed)
  - Fatal: critical errors (process exits)

Configuration:
  - Level: filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: add a component name to all logs
  - WithNoteID: add the note ID a log line concerns
  - WithReplicaActor: add this device's replica actor ID

# Usage

Initializing the Logger:

	import "github.com/inkwell-labs/notesync/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("notebook opened")
	log.Debug("checking transport backoff state")
	log.Warn("debounce reset before previous timer fired")
	log.Error("full sync failed")
	log.Fatal("cannot open local store") // exits process

Structured Logging:

	log.Logger.Info().
		Str("note_id", noteID).
		Int("pending_count", count).
		Msg("note queued for sync")

	log.Logger.Error().
		Err(err).
		Str("note_id", noteID).
		Msg("failed to apply incoming update")

Component Loggers:

	transportLog := log.WithComponent("transport")
	transportLog.Info().Msg("dialing sync server")

	noteLog := log.WithNoteID(note.ID)
	noteLog.Debug().Msg("appended text to replica")

	replicaLog := log.WithReplicaActor(actor)
	replicaLog.Info().Msg("replica initialized")

Complete Example:

	package main

	import (
		"os"
		"github.com/inkwell-labs/notesync/pkg/log"
	)

	func main() {
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("notesyncd starting")

		noteLog := log.WithNoteID("note-123")
		noteLog.Info().Msg("note opened")

		log.Info("notesyncd stopped")
	}

# Integration Points

This package integrates with:

  - pkg/transport: logs malformed and unrecognized frames, and giving up
    after the last reconnect attempt
  - pkg/sync: logs coordinator failures (errors only; success is silent)
  - cmd/notesyncd: initializes the global logger from CLI flags

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"transport","time":"2026-01-13T10:30:00Z","message":"streaming sync connected"}
	{"level":"error","component":"sync","note_id":"note-123","time":"2026-01-13T10:30:01Z","message":"full sync failed"}

Console Format (Development):

	2026-01-13T10:30:00Z INF streaming sync connected component=transport
	2026-01-13T10:30:01Z ERR full sync failed component=sync note_id=note-123

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers down into functions that need them
  - Avoids repetitive field specification at every call site

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Consistent error format across the codebase

# Security

Log Content:
  - Never log the Bearer auth token or raw CRDT payload bytes
  - Redact before sharing logs externally

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
