package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type envelope struct {
	Id   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Bus publishes ledger events over an in-process watermill pub/sub and fans
// them out to registered handlers.
type Bus struct {
	pubsub *gochannel.GoChannel
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            128,
				BlockPublishUntilSubscriberAck: true,
			},
			newLogger(),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Bus) Publish(ctx context.Context, topic ports.Topic, events ...domain.Event) error {
	messages := make([]*message.Message, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize event %s: %w", event.Type(), err)
		}
		id := uuid.New().String()
		payload, err := json.Marshal(envelope{Id: id, Type: event.Type(), Data: data})
		if err != nil {
			return fmt.Errorf("failed to serialize event %s: %w", event.Type(), err)
		}
		msg := message.NewMessage(id, payload)
		msg.SetContext(ctx)
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return nil
	}
	return b.pubsub.Publish(string(topic), messages...)
}

// RegisterEventsHandler subscribes handler to every event published on topic
// from now on. Handlers run sequentially in the order events were published.
func (b *Bus) RegisterEventsHandler(topic ports.Topic, handler func(event domain.Event)) error {
	msgs, err := b.pubsub.Subscribe(b.ctx, string(topic))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range msgs {
			event, err := deserializeEvent(msg.Payload)
			if err != nil {
				log.WithError(err).Warnf("failed to deserialize event: %s", string(msg.Payload))
				msg.Ack()
				continue
			}
			handler(event)
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() {
	b.cancel()
	//nolint:errcheck
	b.pubsub.Close()
	b.wg.Wait()
}

func deserializeEvent(buf []byte) (domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return nil, err
	}

	var event domain.Event
	switch env.Type {
	case domain.EventTypeRequestAdded:
		event = &domain.RequestAdded{}
	case domain.EventTypeRequestSettled:
		event = &domain.RequestSettled{}
	case domain.EventTypeMemoGenerated:
		event = &domain.MemoGenerated{}
	case domain.EventTypeProxyWalletSet:
		event = &domain.ProxyWalletRegistered{}
	case domain.EventTypeOperatorSet:
		event = &domain.OperatorSet{}
	case domain.EventTypeSwapRouterSet:
		event = &domain.SwapRouterSet{}
	case domain.EventTypeFeeSet:
		event = &domain.FeeSet{}
	case domain.EventTypeAdminInitialized:
		event = &domain.AdminInitialized{}
	case domain.EventTypeUpgraded:
		event = &domain.Upgraded{}
	default:
		return nil, fmt.Errorf("unknown event type %s", env.Type)
	}

	if err := json.Unmarshal(env.Data, event); err != nil {
		return nil, err
	}
	return deref(event), nil
}

func deref(event domain.Event) domain.Event {
	switch e := event.(type) {
	case *domain.RequestAdded:
		return *e
	case *domain.RequestSettled:
		return *e
	case *domain.MemoGenerated:
		return *e
	case *domain.ProxyWalletRegistered:
		return *e
	case *domain.OperatorSet:
		return *e
	case *domain.SwapRouterSet:
		return *e
	case *domain.FeeSet:
		return *e
	case *domain.AdminInitialized:
		return *e
	case *domain.Upgraded:
		return *e
	}
	return event
}

// logger adapts logrus to watermill.
type logger struct {
	entry *log.Entry
}

func newLogger() watermill.LoggerAdapter {
	return logger{log.WithField("component", "events")}
}

func (l logger) Error(msg string, err error, fields watermill.LogFields) {
	l.entry.WithFields(log.Fields(fields)).WithError(err).Error(msg)
}

func (l logger) Info(msg string, fields watermill.LogFields) {
	l.entry.WithFields(log.Fields(fields)).Info(msg)
}

func (l logger) Debug(msg string, fields watermill.LogFields) {
	l.entry.WithFields(log.Fields(fields)).Debug(msg)
}

func (l logger) Trace(msg string, fields watermill.LogFields) {
	l.entry.WithFields(log.Fields(fields)).Trace(msg)
}

func (l logger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return logger{l.entry.WithFields(log.Fields(fields))}
}
