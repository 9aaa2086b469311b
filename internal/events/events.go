// Package events publishes factory domain events. APPLICATION_ADDED is the
// only event the base spec names (§4.6 step 15). Grounded on the teacher's
// modules/physics-engine-template/publish/nats.go NATS publisher shape.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/anvil-platform/wavefactory/internal/ports"
)

const applicationAddedSubject = "domain.application.added"

// applicationAddedEvent is the JSON payload published for APPLICATION_ADDED.
type applicationAddedEvent struct {
	AppID           string `json:"appId"`
	WaveformContext string `json:"waveformContext"`
	ComponentCount  int    `json:"componentCount"`
}

// NATSPublisher publishes events over NATS.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to a NATS server and returns a ports.EventPublisher.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// PublishApplicationAdded implements ports.EventPublisher.
func (p *NATSPublisher) PublishApplicationAdded(_ context.Context, appID, waveformContext string, componentCount int) error {
	payload, err := json.Marshal(applicationAddedEvent{
		AppID:           appID,
		WaveformContext: waveformContext,
		ComponentCount:  componentCount,
	})
	if err != nil {
		return fmt.Errorf("marshal APPLICATION_ADDED event: %w", err)
	}
	return p.nc.Publish(applicationAddedSubject, payload)
}

// Close releases the underlying NATS connection.
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// Recorded is an in-memory ports.EventPublisher that records each event
// instead of publishing it.
type Recorded struct {
	Events []applicationAddedEvent
}

// PublishApplicationAdded implements ports.EventPublisher by appending to Events.
func (r *Recorded) PublishApplicationAdded(_ context.Context, appID, waveformContext string, componentCount int) error {
	r.Events = append(r.Events, applicationAddedEvent{AppID: appID, WaveformContext: waveformContext, ComponentCount: componentCount})
	return nil
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)
var _ ports.EventPublisher = (*Recorded)(nil)
