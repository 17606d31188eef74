package ports

import (
	"context"

	"github.com/arkade-os/swapd/internal/core/domain"
)

const (
	LedgerTopic Topic = "swapd.ledger"
	AdminTopic  Topic = "swapd.admin"
)

type Topic string

type EventPublisher interface {
	Publish(ctx context.Context, topic Topic, events ...domain.Event) error
}
