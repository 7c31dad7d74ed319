package inmemorywallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/rafflepool/rafflepool/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// service is an embedded custody wallet for development and testing: one
// pool account credited on every entry, drained into per-recipient balances
// on payout.
type service struct {
	lock     sync.Mutex
	pool     uint64
	accounts map[string]uint64
}

func NewService() ports.WalletService {
	return &service{
		accounts: make(map[string]uint64),
	}
}

func (s *service) Credit(ctx context.Context, amount uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.pool += amount
	return nil
}

func (s *service) Transfer(ctx context.Context, recipient string, amount uint64) error {
	if len(recipient) <= 0 {
		return fmt.Errorf("missing recipient")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if amount > s.pool {
		return fmt.Errorf("insufficient pool funds: have %d, need %d", s.pool, amount)
	}

	s.pool -= amount
	s.accounts[recipient] += amount
	log.Debugf("embedded wallet transferred %d to %s", amount, recipient)
	return nil
}

func (s *service) Balance(ctx context.Context) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pool, nil
}

func (s *service) Close() {}
