/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_signage/internal/events"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
)

// envelope is the wire form of an event on every transport.
type envelope struct {
	ID        string           `json:"id"`
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	NodeID    string           `json:"node_id"`
	SentAt    time.Time        `json:"sent_at"`
}

func encodeEnvelope(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(envelope{
		ID:        uuid.NewString(),
		EventType: eventType,
		Payload:   payload,
		NodeID:    nodeID,
		SentAt:    time.Now().UTC(),
	})
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("decode event envelope: %w", err)
	}
	return env, nil
}

// relay owns the in-process bus behind a distributed one. Local publishes
// and remote deliveries both end up there.
type relay struct {
	local     *events.Bus
	nodeID    string
	transport string
	logger    zerolog.Logger
}

func newRelay(transport, nodeID string, logger zerolog.Logger) relay {
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	return relay{
		local:     events.NewBus(),
		nodeID:    nodeID,
		transport: transport,
		logger:    logger.With().Str("component", "eventbus").Str("transport", transport).Logger(),
	}
}

// deliver hands a remote message to local subscribers. Echoes of this
// node's own publishes are dropped.
func (r relay) deliver(eventType events.EventType, data []byte) {
	env, err := decodeEnvelope(data)
	if err != nil {
		r.logger.Error().Err(err).Msg("dropping malformed event")
		return
	}
	if env.NodeID == r.nodeID {
		return
	}
	telemetry.EventBusMessagesTotal.WithLabelValues(r.transport, "in").Inc()
	r.local.Publish(eventType, env.Payload)
	r.logger.Debug().
		Str("event_type", string(eventType)).
		Str("source_node", env.NodeID).
		Msg("remote event delivered")
}

// encode wraps payload for the wire, logging failures.
func (r relay) encode(eventType events.EventType, payload events.Payload) ([]byte, bool) {
	data, err := encodeEnvelope(eventType, payload, r.nodeID)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("encode event failed")
		return nil, false
	}
	return data, true
}

func (r relay) sent() {
	telemetry.EventBusMessagesTotal.WithLabelValues(r.transport, "out").Inc()
}
