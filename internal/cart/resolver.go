package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

// ResolverStore is the slice of the cart repository the resolver needs.
type ResolverStore interface {
	FindActiveCart(ctx context.Context, userID string) (string, error)
	CreateCart(ctx context.Context, userID string) (string, error)
}

// Resolver establishes exactly one active cart per user. Concurrent callers
// (two tabs, two devices) race on the insert; the store's partial unique
// index picks the winner and the loser re-fetches once.
type Resolver struct {
	store  ResolverStore
	logger *slog.Logger
}

func NewResolver(store ResolverStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// ResolveActiveCart returns the user's active cart id, creating the cart if
// none exists. It never returns an empty id alongside a nil error.
func (r *Resolver) ResolveActiveCart(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", domain.Preconditionf("resolve active cart: missing user id")
	}

	id, err := r.store.FindActiveCart(ctx, userID)
	if err != nil {
		return "", domain.WrapStore("find active cart", err)
	}
	if id != "" {
		return id, nil
	}

	id, err = r.store.CreateCart(ctx, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return "", domain.WrapStore("create cart", err)
	}

	// A concurrent caller won the insert race. Exactly one re-fetch; the
	// winner's row must be there now.
	r.logger.Info("cart insert lost race, re-fetching winner", "user_id", userID)
	id, err = r.store.FindActiveCart(ctx, userID)
	if err != nil {
		return "", domain.WrapStore("re-fetch active cart", err)
	}
	if id == "" {
		return "", fmt.Errorf("active cart vanished after insert race for user %s: %w", userID, domain.ErrConflict)
	}
	return id, nil
}
