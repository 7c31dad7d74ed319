package inmemoryoracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rafflepool/rafflepool/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// service is an embedded randomness oracle for development and testing: it
// assigns a request id, waits for the configured delay and fulfills the
// request in-process with values drawn from crypto/rand. It honors the
// one-fulfillment-per-request contract but offers none of the verifiability
// of a real oracle.
type service struct {
	delay        time.Duration
	fulfillments chan ports.RandomnessFulfillment
	done         chan struct{}
	wg           sync.WaitGroup
}

func NewService(delay time.Duration) (ports.RandomnessOracle, error) {
	if delay < 0 {
		return nil, fmt.Errorf("invalid fulfillment delay")
	}
	return &service{
		delay:        delay,
		fulfillments: make(chan ports.RandomnessFulfillment),
		done:         make(chan struct{}),
	}, nil
}

func (s *service) Request(
	ctx context.Context, params ports.RandomnessParams,
) (string, error) {
	if params.NumValues <= 0 {
		return "", fmt.Errorf("missing number of random values")
	}

	values := make([]uint64, 0, params.NumValues)
	for i := uint32(0); i < params.NumValues; i++ {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("failed to draw random value: %w", err)
		}
		values = append(values, binary.BigEndian.Uint64(buf[:]))
	}

	requestId := uuid.New().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.delay)
		defer timer.Stop()

		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		select {
		case <-s.done:
		case s.fulfillments <- ports.RandomnessFulfillment{
			RequestId: requestId,
			Values:    values,
		}:
			log.Debugf("embedded oracle fulfilled request %s", requestId)
		}
	}()

	return requestId, nil
}

func (s *service) Fulfillments() <-chan ports.RandomnessFulfillment {
	return s.fulfillments
}

func (s *service) Close() {
	close(s.done)
	s.wg.Wait()
	close(s.fulfillments)
}
