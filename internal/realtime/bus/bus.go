package bus

import (
	"context"

	"github.com/yungbote/trainhub-backend/internal/realtime"
)

// Bus fans SSE messages out to every API instance. StartForwarder delivers each
// message published anywhere to onMsg until ctx is done.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

type localBus struct {
	msgs chan realtime.SSEMessage
}

// NewLocalBus is the single-instance bus used when redis is not configured.
func NewLocalBus() Bus {
	return &localBus{msgs: make(chan realtime.SSEMessage, 256)}
}

func (b *localBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	select {
	case b.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-b.msgs:
				onMsg(m)
			}
		}
	}()
	return nil
}

func (b *localBus) Close() error { return nil }
