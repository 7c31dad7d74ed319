package ports

import "context"

// WalletService is the custody account holding the pooled stakes. Credit
// records a received stake, Transfer pays the whole pool out to the winner.
// A failed Transfer must leave the account untouched.
type WalletService interface {
	Credit(ctx context.Context, amount uint64) error
	Transfer(ctx context.Context, recipient string, amount uint64) error
	Balance(ctx context.Context) (uint64, error)
	Close()
}
