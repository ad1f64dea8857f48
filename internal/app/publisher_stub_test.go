package app

import (
	"context"

	"github.com/slotpost/credit-service/pkg/rabbitmq"
)

// publisherStub records published events for assertions.
type publisherStub struct {
	settled []rabbitmq.PostSettledEvent
	moved   []rabbitmq.CreditsMovedEvent
	keys    []string
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *publisherStub) PublishPostSettled(ctx context.Context, event rabbitmq.PostSettledEvent) error {
	p.settled = append(p.settled, event)
	p.keys = append(p.keys, rabbitmq.RoutingKeyPostSettled)
	return nil
}

func (p *publisherStub) PublishCreditsMoved(ctx context.Context, routingKey string, event rabbitmq.CreditsMovedEvent) error {
	p.moved = append(p.moved, event)
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *publisherStub) Close() {}
