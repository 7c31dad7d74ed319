package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rafflepool/rafflepool/internal/core/domain"
	"github.com/rafflepool/rafflepool/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Start() error
	Stop()
	Enter(ctx context.Context, participant string, amount uint64) (*domain.Round, error)
	CheckReady(ctx context.Context) (domain.Readiness, error)
	Trigger(ctx context.Context) (string, error)
	FulfillRandomness(ctx context.Context, requestId string, values []uint64) (*domain.Outcome, error)
	GetCurrentRound(ctx context.Context) (*domain.Round, error)
	GetRoundById(ctx context.Context, id string) (*domain.Round, error)
	GetRoundsIds(ctx context.Context, openedAfter, openedBefore int64) ([]string, error)
	GetLastOutcome(ctx context.Context) (*domain.Outcome, error)
	GetInfo(ctx context.Context) (*ServiceInfo, error)
	GetEventsChannel(ctx context.Context) <-chan LotteryEvent
}

type lotteryService struct {
	// services
	wallet      ports.WalletService
	repoManager ports.RepoManager
	oracle      ports.RandomnessOracle
	liveStore   ports.LiveStore
	scheduler   ports.SchedulerService

	// config
	stake          uint64
	roundInterval  time.Duration
	oracleParams   ports.RandomnessParams
	keeperInterval time.Duration

	// mu serializes every externally triggered operation: enter, trigger,
	// fulfillment. No operation observes a partially applied effect of
	// another, and the CALCULATING stage stays the only mutual-exclusion
	// flag needed over the pool and the ledger.
	mu sync.Mutex

	// randomness request dispatched for a round whose CALCULATING flip
	// could not be stored. The next trigger reuses it instead of issuing
	// a second one, keeping at most one request outstanding per round.
	orphanRoundId   string
	orphanRequestId string

	eventsCh chan LotteryEvent
	done     chan struct{}
}

func NewService(
	stake uint64,
	roundInterval time.Duration,
	oracleParams ports.RandomnessParams,
	keeperInterval time.Duration,
	walletSvc ports.WalletService,
	repoManager ports.RepoManager,
	oracle ports.RandomnessOracle,
	liveStore ports.LiveStore,
	scheduler ports.SchedulerService,
) (Service, error) {
	if stake <= 0 {
		return nil, fmt.Errorf("missing stake amount")
	}
	if roundInterval <= 0 {
		return nil, fmt.Errorf("missing round interval")
	}
	if oracleParams.NumValues <= 0 {
		return nil, fmt.Errorf("oracle must be asked for at least one random value")
	}

	return &lotteryService{
		wallet:         walletSvc,
		repoManager:    repoManager,
		oracle:         oracle,
		liveStore:      liveStore,
		scheduler:      scheduler,
		stake:          stake,
		roundInterval:  roundInterval,
		oracleParams:   oracleParams,
		keeperInterval: keeperInterval,
		eventsCh:       make(chan LotteryEvent, 128),
		done:           make(chan struct{}),
	}, nil
}

func (s *lotteryService) Start() error {
	ctx := context.Background()

	s.mu.Lock()
	err := s.restoreCurrentRound(ctx)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to restore current round: %w", err)
	}

	go s.listenToFulfillments()

	if s.keeperInterval > 0 {
		if err := s.scheduler.ScheduleTaskRecurring(s.keeperInterval, s.keeperTick); err != nil {
			return fmt.Errorf("failed to schedule conclusion keeper: %w", err)
		}
		s.scheduler.Start()
		log.Debugf("conclusion keeper polling every %s", s.keeperInterval)
	}

	return nil
}

func (s *lotteryService) Stop() {
	if s.keeperInterval > 0 {
		s.scheduler.Stop()
	}
	s.oracle.Close()
	close(s.done)
	s.wallet.Close()
	s.repoManager.Close()
	log.Debug("lottery service stopped")
}

func (s *lotteryService) Enter(
	ctx context.Context, participant string, amount uint64,
) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.liveStore.CurrentRound().Get()
	if cur == nil {
		return nil, fmt.Errorf("no active round")
	}

	round := domain.NewRoundFromEvents(cur.Events())
	changes, err := round.RegisterEntry(participant, amount)
	if err != nil {
		return nil, err
	}

	// The pool account must hold the stake before the ledger records the
	// entry, or the eventual payout of the full pool can be refused.
	if err := s.wallet.Credit(ctx, amount); err != nil {
		return nil, fmt.Errorf("failed to credit pool account: %w", err)
	}

	if err := s.commit(ctx, round, changes); err != nil {
		log.WithError(err).Warnf(
			"pool credited %d for %s but entry not recorded", amount, participant,
		)
		return nil, err
	}

	s.publishEvent(ParticipantEntered{
		RoundId:      round.Id,
		Participant:  participant,
		Amount:       amount,
		PoolBalance:  round.PoolAmount,
		Participants: len(round.Entries),
	})

	log.Debugf("registered entry for %s in round %s", participant, round.Id)
	return round, nil
}

func (s *lotteryService) CheckReady(ctx context.Context) (domain.Readiness, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.liveStore.CurrentRound().Get()
	if cur == nil {
		return domain.Readiness{}, fmt.Errorf("no active round")
	}

	return cur.Readiness(s.roundInterval, time.Now().Unix()), nil
}

// Trigger concludes entry acceptance and dispatches the single randomness
// request. Callable by anyone: readiness, not caller identity, is the only
// check. The mutex spans the CALCULATING flip and the oracle dispatch, so
// no second request can be issued against the same round.
func (s *lotteryService) Trigger(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.liveStore.CurrentRound().Get()
	if cur == nil {
		return "", fmt.Errorf("no active round")
	}

	now := time.Now().Unix()
	if diag := cur.Readiness(s.roundInterval, now); !diag.Ready {
		return "", domain.ConclusionNotReadyError{Diagnostic: diag}
	}

	round := domain.NewRoundFromEvents(cur.Events())

	requestId := ""
	if s.orphanRoundId == round.Id {
		requestId = s.orphanRequestId
	}
	if requestId == "" {
		var err error
		requestId, err = s.oracle.Request(ctx, s.oracleParams)
		if err != nil {
			return "", fmt.Errorf("failed to request randomness: %w", err)
		}
	}

	changes, err := round.StartCalculation(requestId, now)
	if err != nil {
		return "", err
	}

	if err := s.commit(ctx, round, changes); err != nil {
		s.orphanRoundId, s.orphanRequestId = round.Id, requestId
		return "", err
	}
	s.orphanRoundId, s.orphanRequestId = "", ""
	s.liveStore.PendingRequests().Add(requestId, round.Id)

	log.Debugf("round %s calculating, randomness request %s outstanding", round.Id, requestId)
	return requestId, nil
}

// FulfillRandomness is the oracle callback: exactly one delivery per
// request, relayed by whoever the oracle uses, whenever it answers.
// Phase order is strict: correlate, apply all local effects to a working
// copy, pay out last. Nothing is committed when the payout fails, so the
// live round stays CALCULATING with the randomness consumed and no retry
// path.
func (s *lotteryService) FulfillRandomness(
	ctx context.Context, requestId string, values []uint64,
) (*domain.Outcome, error) {
	if len(values) <= 0 {
		return nil, fmt.Errorf("missing random values")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roundId, ok := s.liveStore.PendingRequests().Get(requestId)
	if !ok {
		return nil, ErrUnknownRequest
	}

	cur := s.liveStore.CurrentRound().Get()
	if cur == nil || cur.Id != roundId {
		return nil, ErrUnknownRequest
	}

	round := domain.NewRoundFromEvents(cur.Events())
	now := time.Now().Unix()

	changes, err := round.Conclude(values[0], now)
	if err != nil {
		return nil, err
	}

	outcome := domain.Outcome{
		RoundId:     round.Id,
		Winner:      round.Winner,
		Prize:       round.Prize,
		RandomValue: values[0],
		RequestId:   requestId,
		Timestamp:   now,
	}

	// Interactions last: the single transfer of the entire pool.
	if err := s.wallet.Transfer(ctx, outcome.Winner, outcome.Prize); err != nil {
		log.WithError(err).Errorf(
			"payout of %d to %s failed, round %s stuck in CALCULATING with randomness consumed",
			outcome.Prize, outcome.Winner, round.Id,
		)
		return nil, domain.TransferFailedError{
			Recipient: outcome.Winner,
			Amount:    outcome.Prize,
			Err:       err,
		}
	}

	if err := s.commit(ctx, round, changes); err != nil {
		// The prize already left the pool: drop the correlation so a
		// replayed fulfillment cannot pay a second time.
		s.liveStore.PendingRequests().Delete(requestId)
		log.WithError(err).Errorf(
			"prize %d paid to %s but conclusion of round %s not stored",
			outcome.Prize, outcome.Winner, round.Id,
		)
		return nil, err
	}
	s.liveStore.PendingRequests().Delete(requestId)

	if err := s.repoManager.Outcomes().AddOutcome(ctx, outcome); err != nil {
		log.WithError(err).Warn("failed to store outcome record")
	}

	// The next cycle opens at the conclusion timestamp.
	if err := s.openNewRound(ctx, now); err != nil {
		return nil, err
	}

	s.publishEvent(WinnerSelected{
		RoundId:     outcome.RoundId,
		Winner:      outcome.Winner,
		Prize:       outcome.Prize,
		RandomValue: outcome.RandomValue,
		RequestId:   outcome.RequestId,
	})

	log.Debugf("round %s concluded, prize %d paid to %s", round.Id, outcome.Prize, outcome.Winner)
	return &outcome, nil
}

func (s *lotteryService) GetCurrentRound(ctx context.Context) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.liveStore.CurrentRound().Get()
	if cur == nil {
		return nil, fmt.Errorf("no active round")
	}
	return cur, nil
}

func (s *lotteryService) GetRoundById(ctx context.Context, id string) (*domain.Round, error) {
	return s.repoManager.Rounds().GetRoundWithId(ctx, id)
}

func (s *lotteryService) GetRoundsIds(
	ctx context.Context, openedAfter, openedBefore int64,
) ([]string, error) {
	return s.repoManager.Rounds().GetRoundsIds(ctx, openedAfter, openedBefore)
}

func (s *lotteryService) GetLastOutcome(ctx context.Context) (*domain.Outcome, error) {
	return s.repoManager.Outcomes().GetLatestOutcome(ctx)
}

func (s *lotteryService) GetInfo(ctx context.Context) (*ServiceInfo, error) {
	return &ServiceInfo{
		Stake:         s.stake,
		RoundInterval: int64(s.roundInterval.Seconds()),
		OracleParams:  s.oracleParams,
	}, nil
}

func (s *lotteryService) GetEventsChannel(ctx context.Context) <-chan LotteryEvent {
	return s.eventsCh
}

// commit persists the new events and swaps the live round. Mutations are
// built on a replayed working copy, so a failed commit leaves the live
// round untouched.
func (s *lotteryService) commit(
	ctx context.Context, round *domain.Round, changes []domain.RoundEvent,
) error {
	if _, err := s.repoManager.Events().Save(ctx, round.Id, changes...); err != nil {
		return fmt.Errorf("failed to store round events: %w", err)
	}
	if err := s.repoManager.Rounds().AddOrUpdateRound(ctx, *round); err != nil {
		log.WithError(err).Warn("failed to update round snapshot")
	}
	s.liveStore.CurrentRound().Upsert(func(_ *domain.Round) *domain.Round {
		return round
	})
	return nil
}

func (s *lotteryService) restoreCurrentRound(ctx context.Context) error {
	latest, err := s.repoManager.Rounds().GetLatestRound(ctx)
	if err != nil {
		return err
	}

	if latest != nil && !latest.IsConcluded() {
		round, err := s.repoManager.Events().Load(ctx, latest.Id)
		if err != nil {
			return err
		}
		s.liveStore.CurrentRound().Upsert(func(_ *domain.Round) *domain.Round {
			return round
		})
		if round.IsCalculating() {
			// Restart mid-calculation: the request stays outstanding, the
			// round keeps waiting for its one fulfillment.
			s.liveStore.PendingRequests().Add(round.RequestId, round.Id)
			log.Warnf(
				"restored round %s in CALCULATING, randomness request %s still outstanding",
				round.Id, round.RequestId,
			)
		} else {
			log.Debugf("restored open round %s", round.Id)
		}
		return nil
	}

	return s.openNewRound(ctx, time.Now().Unix())
}

func (s *lotteryService) openNewRound(ctx context.Context, at int64) error {
	round := domain.NewRound(s.stake)
	changes, err := round.Open(at)
	if err != nil {
		return err
	}
	if err := s.commit(ctx, round, changes); err != nil {
		return err
	}
	log.Debugf("opened new round %s", round.Id)
	return nil
}

func (s *lotteryService) listenToFulfillments() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("recovered from panic in listenToFulfillments: %v", r)
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case fulfillment, ok := <-s.oracle.Fulfillments():
			if !ok {
				return
			}
			if _, err := s.FulfillRandomness(
				context.Background(), fulfillment.RequestId, fulfillment.Values,
			); err != nil {
				log.WithError(err).Warn("failed to handle randomness fulfillment")
			}
		}
	}
}

func (s *lotteryService) keeperTick() {
	ctx := context.Background()

	diag, err := s.CheckReady(ctx)
	if err != nil {
		log.WithError(err).Warn("keeper failed to check readiness")
		return
	}
	if !diag.Ready {
		log.Debugf(
			"keeper: conclusion not ready (balance %d, participants %d, state %s)",
			diag.Balance, diag.Participants, diag.Stage,
		)
		return
	}

	if _, err := s.Trigger(ctx); err != nil {
		log.WithError(err).Warn("keeper failed to trigger conclusion")
	}
}

// publishEvent preserves emission order: sends happen synchronously under
// mu into a buffered channel, so listeners observe entries and winners in
// the order they were applied. A full buffer drops the notification.
func (s *lotteryService) publishEvent(event LotteryEvent) {
	select {
	case s.eventsCh <- event:
	default:
		log.Warn("events channel full, dropping notification")
	}
}
