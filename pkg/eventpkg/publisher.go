// Package eventpkg publishes committed ledger transactions to interested consumers.
package eventpkg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TopicTransactions is the topic committed transactions are published on.
const TopicTransactions = "ledger.transactions"

// Publisher delivers events to a topic.
//
//go:generate mockgen -source publisher.go -destination publisher_mock.go -package eventpkg
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// TransactionCompleted is published once per committed transaction leg.
// Events are sent after the account is unlocked, so two events of one account
// may arrive out of order. Seq is the commit order.
type TransactionCompleted struct {
	Email        string    `json:"email"`
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Counterparty string    `json:"counterparty,omitempty"`
	Amount       int64     `json:"amount"`
	Balance      int64     `json:"balance"`
	Description  string    `json:"description"`
	TransferID   uuid.UUID `json:"transfer_id"`
}

// PublishCompleted publishes e keyed by its account email.
// A failed delivery is logged and otherwise ignored: the transaction is
// already durable when this is called.
func PublishCompleted(ctx context.Context, p Publisher, e TransactionCompleted) {
	if p == nil {
		return
	}

	if err := p.Publish(ctx, TopicTransactions, e.Email, e); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("seq", e.Seq).Msg("cannot publish transaction event")
	}
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, string, any) error {
	return nil
}
