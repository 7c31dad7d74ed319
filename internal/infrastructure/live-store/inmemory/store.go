package inmemorylivestore

import (
	"sync"

	"github.com/rafflepool/rafflepool/internal/core/domain"
	"github.com/rafflepool/rafflepool/internal/core/ports"
)

type liveStore struct {
	currentRound    ports.CurrentRoundStore
	pendingRequests ports.PendingRequestsStore
}

func NewLiveStore() ports.LiveStore {
	return &liveStore{
		currentRound:    newCurrentRoundStore(),
		pendingRequests: newPendingRequestsStore(),
	}
}

func (s *liveStore) CurrentRound() ports.CurrentRoundStore {
	return s.currentRound
}

func (s *liveStore) PendingRequests() ports.PendingRequestsStore {
	return s.pendingRequests
}

type currentRoundStore struct {
	lock  sync.RWMutex
	round *domain.Round
}

func newCurrentRoundStore() ports.CurrentRoundStore {
	return &currentRoundStore{}
}

func (s *currentRoundStore) Upsert(fn func(m *domain.Round) *domain.Round) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.round = fn(s.round)
}

func (s *currentRoundStore) Get() *domain.Round {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.round
}

type pendingRequestsStore struct {
	lock     sync.RWMutex
	requests map[string]string
}

func newPendingRequestsStore() ports.PendingRequestsStore {
	return &pendingRequestsStore{
		requests: make(map[string]string),
	}
}

func (s *pendingRequestsStore) Add(requestId, roundId string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.requests[requestId] = roundId
}

func (s *pendingRequestsStore) Get(requestId string) (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	roundId, ok := s.requests[requestId]
	return roundId, ok
}

func (s *pendingRequestsStore) Delete(requestId string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.requests, requestId)
}

func (s *pendingRequestsStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.requests)
}
