/*
Package events provides an in-memory event broker for the sync core's
lifecycle notifications.

The events package implements a lightweight event bus for broadcasting
transport and sync-cycle events to interested subscribers. A UI layer
(desktop, mobile, or a headless daemon's status command) subscribes once
and observes connection state and per-note sync progress without polling.

# Architecture

The broker provides non-blocking pub/sub messaging with buffered channels:

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Non-blocking publish                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                  │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Transport Events:                          │          │
	│  │    - transport.connecting                   │          │
	│  │    - transport.connected                    │          │
	│  │    - transport.disconnected                 │          │
	│  │    - transport.reconnecting                 │          │
	│  │                                              │          │
	│  │  Sync Events:                                │          │
	│  │    - sync.started                           │          │
	│  │    - sync.completed                         │          │
	│  │    - sync.failed                            │          │
	│  │                                              │          │
	│  │  Note Events:                                │          │
	│  │    - note.status_changed                    │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  UI layer: render connection/sync indicators│          │
	│  │  CLI: print status transitions              │          │
	│  │  Metrics: count events for dashboards       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (transport.connected, sync.failed, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context (note_id, error, etc.)

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

Event Types:
  - Transport: connecting, connected, disconnected, reconnecting
  - Sync: started, completed, failed
  - Note: status_changed

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Event added to main event channel (non-blocking)
 3. Broadcast loop receives event
 4. Event sent to all subscriber channels
 5. Subscribers receive event asynchronously
 6. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe()
 2. New buffered channel created
 3. Channel registered in subscriber map
 4. Subscriber channel returned
 5. Subscriber receives events via channel
 6. Subscriber processes events in own goroutine

Unsubscribe Flow:
 1. Subscriber calls broker.Unsubscribe(channel)
 2. Channel removed from subscriber map
 3. Channel closed
 4. Subscriber stops receiving events

# Usage

Creating and Starting Broker:

	import "github.com/inkwell-labs/notesync/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to Events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Publishing Events:

	event := &events.Event{
		ID:      "evt-123",
		Type:    events.EventNoteStatusChanged,
		Message: "note 'grocery-list' synced",
		Metadata: map[string]string{
			"note_id": "note-xyz",
			"state":   "synced",
		},
	}
	broker.Publish(event)

Filtering Events by Type:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.Type {
			case events.EventTransportConnected:
				handleConnected(event)
			case events.EventSyncFailed:
				handleSyncFailed(event)
			default:
				// ignore other events
			}
		}
	}()

Complete Example:

	package main

	import (
		"fmt"
		"time"
		"github.com/inkwell-labs/notesync/pkg/events"
	)

	func main() {
		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)

		go func() {
			for event := range sub {
				fmt.Printf("[%s] %s: %s\n",
					event.Timestamp.Format("15:04:05"),
					event.Type,
					event.Message)
			}
		}()

		broker.Publish(&events.Event{
			Type:    events.EventTransportConnected,
			Message: "streaming sync connected",
		})

		broker.Publish(&events.Event{
			Type:    events.EventSyncFailed,
			Message: "full sync failed: network unreachable",
			Metadata: map[string]string{
				"error": "network unreachable",
			},
		})

		time.Sleep(100 * time.Millisecond)
	}

# Integration Points

This package integrates with:

  - pkg/transport: Publishes connection state transitions on its own Broker
    (Transport.Events)
  - pkg/sync: Publishes sync cycle and per-note status events
  - pkg/facade: Exposes a Subscribe on the coordinator's broker to callers
    (Notebook.Events)
  - cmd/notesyncd: Could stream events to a terminal UI (not yet wired)

# Event Types Catalog

Transport Events:

EventTransportConnecting:
  - Published when: the websocket dial loop begins an attempt
  - Subscribers: UI connection indicator

EventTransportConnected:
  - Published when: the websocket handshake succeeds
  - Subscribers: UI connection indicator, sync coordinator

EventTransportDisconnected:
  - Published when: the connection drops or Disconnect is called
  - Subscribers: UI connection indicator

EventTransportReconnecting:
  - Published when: backoff is about to retry a dial
  - Subscribers: UI connection indicator

Sync Events:

EventSyncStarted:
  - Published when: a full sync cycle begins
  - Metadata: none
  - Subscribers: UI sync indicator

EventSyncCompleted:
  - Published when: a full sync cycle finishes without error
  - Subscribers: UI sync indicator, metrics

EventSyncFailed:
  - Published when: a full sync cycle returns an error
  - Metadata: error
  - Subscribers: UI sync indicator, metrics

Note Events:

EventNoteStatusChanged:
  - Published when: a note's per-note SyncStatus transitions state
  - Metadata: note_id; Message carries the new state
  - Subscribers: UI per-note sync badge
*/
package events
