package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const defaultPublishTimeout = 5 * time.Second

// PriceChangePublisher publishes label price changes to a Pub/Sub topic so
// shelf gateways can push the new price to the physical label.
type PriceChangePublisher struct {
	topic   *pubsub.Topic
	timeout time.Duration
	marshal func(any) ([]byte, error)
}

var _ services.PriceEventPublisher = (*PriceChangePublisher)(nil)

// Option customises the publisher.
type Option func(*PriceChangePublisher)

// WithPublishTimeout bounds how long a publish may block the request.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *PriceChangePublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPriceChangePublisher constructs a Pub/Sub backed price event publisher.
// Messages carry the companyId as ordering key, so the topic should have
// message ordering enabled when strict per-tenant order is required.
func NewPriceChangePublisher(topic *pubsub.Topic, opts ...Option) (*PriceChangePublisher, error) {
	if topic == nil {
		return nil, errors.New("price change publisher: topic is required")
	}
	p := &PriceChangePublisher{
		topic:   topic,
		timeout: defaultPublishTimeout,
		marshal: json.Marshal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// PublishPriceChange sends the event and waits for the server acknowledgement.
func (p *PriceChangePublisher) PublishPriceChange(ctx context.Context, event services.PriceChangeEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("price change publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal price change: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "companyId", event.CompanyID)
	setAttr(attrs, "branchId", event.BranchID)
	setAttr(attrs, "labelId", event.LabelID)
	setAttr(attrs, "labelDocId", event.LabelDocID)
	setAttr(attrs, "reason", event.Reason)
	setAttr(attrs, "finalPrice", strconv.FormatFloat(event.FinalPrice, 'f', 2, 64))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := &pubsub.Message{Data: data, Attributes: attrs}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = strings.TrimSpace(event.CompanyID)
	}
	result := p.topic.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return fmt.Errorf("publish price change: %w", err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PriceChangePublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
