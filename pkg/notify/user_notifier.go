package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

// RecipientResolver looks up where a user's notifications go.
type RecipientResolver interface {
	Recipient(ctx context.Context, userID uuid.UUID) (Recipient, error)
}

// RecipientResolverFunc adapts a function to RecipientResolver.
type RecipientResolverFunc func(ctx context.Context, userID uuid.UUID) (Recipient, error)

// Recipient calls f.
func (f RecipientResolverFunc) Recipient(ctx context.Context, userID uuid.UUID) (Recipient, error) {
	return f(ctx, userID)
}

// Sender is satisfied by Dispatcher.
type Sender interface {
	Send(ctx context.Context, kind Kind, to Recipient, data Data) DeliveryResult
}

// UserNotifier addresses notifications by user id.
type UserNotifier struct {
	resolver RecipientResolver
	sender   Sender
	logger   *slog.Logger
}

// NewUserNotifier creates a UserNotifier.
func NewUserNotifier(resolver RecipientResolver, sender Sender, log *slog.Logger) *UserNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &UserNotifier{resolver: resolver, sender: sender, logger: log}
}

// Notify resolves userID and sends kind.
func (n *UserNotifier) Notify(ctx context.Context, userID uuid.UUID, kind Kind, data Data) DeliveryResult {
	to, err := n.resolver.Recipient(ctx, userID)
	if err != nil {
		n.logger.WarnContext(ctx, "notification recipient lookup failed",
			logger.UserID(userID),
			logger.Notification(string(kind)),
			logger.Error(err),
		)
		return DeliveryResult{Kind: kind, Err: errors.Join(ErrRecipientLookup, err)}
	}
	return n.sender.Send(ctx, kind, to, data)
}
