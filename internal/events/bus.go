/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Content changes, used for cache invalidation and viewer nudges
	EventMediaCreated    EventType = "content.media_created"
	EventMediaUpdated    EventType = "content.media_updated"
	EventMediaDeleted    EventType = "content.media_deleted"
	EventPlaylistUpdated EventType = "content.playlist_updated"
	EventPlaylistDeleted EventType = "content.playlist_deleted"
	EventDeviceUpdated   EventType = "content.device_updated"
	EventDeviceDeleted   EventType = "content.device_deleted"

	// Viewer lifecycle
	EventViewerConnected    EventType = "viewer.connected"
	EventViewerDisconnected EventType = "viewer.disconnected"
)

// ContentEvents lists every event that can change what a viewer should show.
// Media updates leave playlist fingerprints alone, so they are not listed.
var ContentEvents = []EventType{
	EventMediaDeleted,
	EventPlaylistUpdated,
	EventPlaylistDeleted,
	EventDeviceUpdated,
	EventDeviceDeleted,
}

// Payload generic event payload.
type Payload map[string]any

// String returns the string value stored under key, or "".
func (p Payload) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher publishes events.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker is implemented by the in-process bus and the distributed buses.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 32)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events rather
// than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel. Unknown
// subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Count returns the number of subscribers for event type.
func (b *Bus) Count(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
