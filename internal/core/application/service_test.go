package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rafflepool/rafflepool/internal/core/application"
	"github.com/rafflepool/rafflepool/internal/core/domain"
	"github.com/rafflepool/rafflepool/internal/core/ports"
	inmemorylivestore "github.com/rafflepool/rafflepool/internal/infrastructure/live-store/inmemory"
	"github.com/stretchr/testify/require"
)

var (
	testStake    = uint64(100)
	testInterval = time.Second
	testParams   = ports.RandomnessParams{
		Confirmations:  3,
		NumValues:      1,
		ResourceBudget: 100000,
		RequestClass:   "standard",
	}
)

func TestEnter(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		round, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		require.Len(t, round.Entries, 1)
		require.Equal(t, testStake, round.PoolAmount)
		require.Equal(t, testStake, deps.wallet.credited)

		// repeat entries raise the odds, nothing caps them
		round, err = svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		require.Len(t, round.Entries, 2)
		require.Equal(t, 2*testStake, round.PoolAmount)
	})

	t.Run("insufficient_stake", func(t *testing.T) {
		svc, _ := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake-1)
		require.ErrorIs(t, err, domain.InsufficientStakeError{
			Amount: testStake - 1,
			Stake:  testStake,
		})
	})

	t.Run("rejected_while_calculating", func(t *testing.T) {
		svc, _ := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		_, err = svc.Trigger(context.Background())
		require.NoError(t, err)

		_, err = svc.Enter(context.Background(), "bob", testStake)
		require.ErrorIs(t, err, domain.ErrRoundNotOpen)
	})

	t.Run("credit_failure_rejects_entry", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		deps.wallet.failCredit = true
		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.Error(t, err)

		// the ledger never recorded the entry, so the pool cannot exceed
		// what the custody account actually holds
		round, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)
		require.Empty(t, round.Entries)
		require.Zero(t, round.PoolAmount)
		require.Zero(t, deps.wallet.credited)

		deps.wallet.failCredit = false
		round, err = svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		require.Len(t, round.Entries, 1)
		require.Equal(t, testStake, deps.wallet.credited)
	})
}

func TestTrigger(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)

		diag, err := svc.CheckReady(context.Background())
		require.NoError(t, err)
		require.True(t, diag.Ready)

		requestId, err := svc.Trigger(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, requestId)
		require.Equal(t, 1, deps.oracle.requests)
		require.Equal(t, 1, deps.liveStore.PendingRequests().Len())

		round, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)
		require.True(t, round.IsCalculating())
		require.Equal(t, requestId, round.RequestId)
	})

	t.Run("not_ready", func(t *testing.T) {
		svc, _ := newTestService(t)
		defer svc.Stop()

		// no entries yet: diagnostic carries balance, participants and state
		_, err := svc.Trigger(context.Background())
		var notReady domain.ConclusionNotReadyError
		require.ErrorAs(t, err, &notReady)
		require.False(t, notReady.Diagnostic.Ready)
		require.Zero(t, notReady.Diagnostic.Balance)
		require.Zero(t, notReady.Diagnostic.Participants)
		require.Equal(t, domain.OpenStage, notReady.Diagnostic.Stage)
	})

	t.Run("rejected_while_calculating", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		_, err = svc.Trigger(context.Background())
		require.NoError(t, err)

		// a second trigger must not issue a second randomness request
		_, err = svc.Trigger(context.Background())
		var notReady domain.ConclusionNotReadyError
		require.ErrorAs(t, err, &notReady)
		require.Equal(t, domain.CalculatingStage, notReady.Diagnostic.Stage)
		require.Equal(t, 1, deps.oracle.requests)
	})

	t.Run("oracle_dispatch_failure", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)

		deps.oracle.failRequest = true
		_, err = svc.Trigger(context.Background())
		require.Error(t, err)

		// the round stays OPEN and keeps accepting entries
		round, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)
		require.True(t, round.IsOpen())
		require.Zero(t, deps.liveStore.PendingRequests().Len())

		deps.oracle.failRequest = false
		_, err = svc.Enter(context.Background(), "bob", testStake)
		require.NoError(t, err)
		_, err = svc.Trigger(context.Background())
		require.NoError(t, err)
	})

	t.Run("storage_failure_reuses_request", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)

		deps.repo.failSave = true
		_, err = svc.Trigger(context.Background())
		require.Error(t, err)

		round, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)
		require.True(t, round.IsOpen())
		require.Zero(t, deps.liveStore.PendingRequests().Len())

		// the dispatched request is reused on the retry, never reissued
		deps.repo.failSave = false
		requestId, err := svc.Trigger(context.Background())
		require.NoError(t, err)
		require.Equal(t, "req-1", requestId)
		require.Equal(t, 1, deps.oracle.requests)
	})
}

func TestFulfillRandomness(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		for _, participant := range []string{"alice", "bob", "carol"} {
			_, err := svc.Enter(context.Background(), participant, testStake)
			require.NoError(t, err)
		}
		concluded, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)

		requestId, err := svc.Trigger(context.Background())
		require.NoError(t, err)

		// 7 mod 3 = 1
		outcome, err := svc.FulfillRandomness(context.Background(), requestId, []uint64{7})
		require.NoError(t, err)
		require.Equal(t, concluded.Id, outcome.RoundId)
		require.Equal(t, "bob", outcome.Winner)
		require.Equal(t, 3*testStake, outcome.Prize)
		require.Equal(t, uint64(7), outcome.RandomValue)
		require.Equal(t, requestId, outcome.RequestId)

		// the whole pool was paid out in a single transfer
		require.Len(t, deps.wallet.transfers, 1)
		require.Equal(t, "bob", deps.wallet.transfers[0].recipient)
		require.Equal(t, 3*testStake, deps.wallet.transfers[0].amount)

		// the correlation is consumed
		require.Zero(t, deps.liveStore.PendingRequests().Len())

		// the outcome is queryable
		last, err := svc.GetLastOutcome(context.Background())
		require.NoError(t, err)
		require.Equal(t, outcome, last)

		// a fresh round opened at the conclusion timestamp, with an empty
		// ledger and zero pool
		next, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)
		require.NotEqual(t, concluded.Id, next.Id)
		require.True(t, next.IsOpen())
		require.Empty(t, next.Entries)
		require.Zero(t, next.PoolAmount)
		require.Equal(t, outcome.Timestamp, next.OpenedAt)
	})

	t.Run("unknown_request", func(t *testing.T) {
		svc, _ := newTestService(t)
		defer svc.Stop()

		_, err := svc.FulfillRandomness(context.Background(), "no-such-request", []uint64{7})
		require.ErrorIs(t, err, application.ErrUnknownRequest)
	})

	t.Run("duplicate_fulfillment", func(t *testing.T) {
		svc, _ := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		requestId, err := svc.Trigger(context.Background())
		require.NoError(t, err)

		_, err = svc.FulfillRandomness(context.Background(), requestId, []uint64{1})
		require.NoError(t, err)

		_, err = svc.FulfillRandomness(context.Background(), requestId, []uint64{1})
		require.ErrorIs(t, err, application.ErrUnknownRequest)
	})

	t.Run("missing_values", func(t *testing.T) {
		svc, _ := newTestService(t)
		defer svc.Stop()

		_, err := svc.FulfillRandomness(context.Background(), "whatever", nil)
		require.EqualError(t, err, "missing random values")
	})

	t.Run("payout_failure_commits_nothing", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		requestId, err := svc.Trigger(context.Background())
		require.NoError(t, err)

		deps.wallet.failTransfer = true
		_, err = svc.FulfillRandomness(context.Background(), requestId, []uint64{3})
		var transferFailed domain.TransferFailedError
		require.ErrorAs(t, err, &transferFailed)
		require.Equal(t, "alice", transferFailed.Recipient)
		require.Equal(t, testStake, transferFailed.Amount)

		// nothing was committed: the round is still CALCULATING, the ledger
		// and pool are intact, the correlation is still pending and no
		// outcome was recorded
		round, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)
		require.True(t, round.IsCalculating())
		require.Len(t, round.Entries, 1)
		require.Equal(t, testStake, round.PoolAmount)
		require.Equal(t, 1, deps.liveStore.PendingRequests().Len())

		last, err := svc.GetLastOutcome(context.Background())
		require.NoError(t, err)
		require.Nil(t, last)

		// the randomness is consumed and never redelivered: the round is
		// stuck, a new trigger is rejected while CALCULATING
		_, err = svc.Trigger(context.Background())
		var notReady domain.ConclusionNotReadyError
		require.ErrorAs(t, err, &notReady)
		require.Equal(t, domain.CalculatingStage, notReady.Diagnostic.Stage)
	})

	t.Run("paid_but_uncommitted_drops_correlation", func(t *testing.T) {
		svc, deps := newTestService(t)
		defer svc.Stop()

		_, err := svc.Enter(context.Background(), "alice", testStake)
		require.NoError(t, err)
		requestId, err := svc.Trigger(context.Background())
		require.NoError(t, err)

		deps.repo.failSave = true
		_, err = svc.FulfillRandomness(context.Background(), requestId, []uint64{3})
		require.Error(t, err)

		// the prize left the pool exactly once and the correlation is gone,
		// so a replayed fulfillment cannot pay a second time
		require.Len(t, deps.wallet.transfers, 1)
		require.Zero(t, deps.liveStore.PendingRequests().Len())

		deps.repo.failSave = false
		_, err = svc.FulfillRandomness(context.Background(), requestId, []uint64{3})
		require.ErrorIs(t, err, application.ErrUnknownRequest)
		require.Len(t, deps.wallet.transfers, 1)
	})
}

func TestEventsOrder(t *testing.T) {
	svc, _ := newTestService(t)
	defer svc.Stop()

	for _, participant := range []string{"alice", "bob", "carol"} {
		_, err := svc.Enter(context.Background(), participant, testStake)
		require.NoError(t, err)
	}

	// notifications come out in the order the entries were applied
	ch := svc.GetEventsChannel(context.Background())
	for _, expected := range []string{"alice", "bob", "carol"} {
		event := <-ch
		entered, ok := event.(application.ParticipantEntered)
		require.True(t, ok)
		require.Equal(t, expected, entered.Participant)
	}
}

func TestRestore(t *testing.T) {
	t.Run("restores_calculating_round", func(t *testing.T) {
		deps := newTestDeps()

		// a previous run went down mid-calculation
		round := domain.NewRound(testStake)
		_, err := round.Open(time.Now().Unix() - 60)
		require.NoError(t, err)
		_, err = round.RegisterEntry("alice", testStake)
		require.NoError(t, err)
		_, err = round.StartCalculation("req-restored", time.Now().Unix()-30)
		require.NoError(t, err)

		ctx := context.Background()
		_, err = deps.repo.Events().Save(ctx, round.Id, round.Events()...)
		require.NoError(t, err)
		require.NoError(t, deps.repo.Rounds().AddOrUpdateRound(ctx, *round))

		svc := newServiceWithDeps(t, deps)
		require.NoError(t, svc.Start())
		defer svc.Stop()

		restored, err := svc.GetCurrentRound(ctx)
		require.NoError(t, err)
		require.Equal(t, round.Id, restored.Id)
		require.True(t, restored.IsCalculating())

		// the outstanding request is correlated again and can be fulfilled
		outcome, err := svc.FulfillRandomness(ctx, "req-restored", []uint64{0})
		require.NoError(t, err)
		require.Equal(t, "alice", outcome.Winner)
	})

	t.Run("opens_fresh_round_on_empty_store", func(t *testing.T) {
		svc := newServiceWithDeps(t, newTestDeps())
		require.NoError(t, svc.Start())
		defer svc.Stop()

		round, err := svc.GetCurrentRound(context.Background())
		require.NoError(t, err)
		require.True(t, round.IsOpen())
		require.Empty(t, round.Entries)
	})
}

func TestGetInfo(t *testing.T) {
	svc, _ := newTestService(t)
	defer svc.Stop()

	info, err := svc.GetInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, testStake, info.Stake)
	require.Equal(t, testParams, info.OracleParams)
}

type testDeps struct {
	repo      *fakeRepoManager
	wallet    *fakeWallet
	oracle    *fakeOracle
	liveStore ports.LiveStore
	scheduler *fakeScheduler
}

func newTestDeps() *testDeps {
	return &testDeps{
		repo: &fakeRepoManager{
			events: make(map[string][]domain.RoundEvent),
			rounds: make(map[string]domain.Round),
		},
		wallet:    &fakeWallet{},
		oracle:    &fakeOracle{fulfillments: make(chan ports.RandomnessFulfillment)},
		liveStore: inmemorylivestore.NewLiveStore(),
		scheduler: &fakeScheduler{},
	}
}

func newServiceWithDeps(t *testing.T, deps *testDeps) application.Service {
	svc, err := application.NewService(
		testStake, testInterval, testParams, 0,
		deps.wallet, deps.repo, deps.oracle, deps.liveStore, deps.scheduler,
	)
	require.NoError(t, err)
	return svc
}

// newTestService restores a round opened well in the past, so the
// elapsed-interval condition holds as soon as the ledger is funded.
func newTestService(t *testing.T) (application.Service, *testDeps) {
	deps := newTestDeps()
	seedOpenRound(t, deps, time.Now().Unix()-60)
	svc := newServiceWithDeps(t, deps)
	require.NoError(t, svc.Start())
	return svc, deps
}

func seedOpenRound(t *testing.T, deps *testDeps, openedAt int64) {
	round := domain.NewRound(testStake)
	_, err := round.Open(openedAt)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = deps.repo.Events().Save(ctx, round.Id, round.Events()...)
	require.NoError(t, err)
	require.NoError(t, deps.repo.Rounds().AddOrUpdateRound(ctx, *round))
}

type fakeRepoManager struct {
	lock     sync.Mutex
	events   map[string][]domain.RoundEvent
	rounds   map[string]domain.Round
	outcomes []domain.Outcome
	failSave bool
}

func (m *fakeRepoManager) Events() domain.RoundEventRepository { return m }
func (m *fakeRepoManager) Rounds() domain.RoundRepository      { return m }
func (m *fakeRepoManager) Outcomes() domain.OutcomeRepository  { return m }
func (m *fakeRepoManager) Close()                              {}

func (m *fakeRepoManager) Save(
	_ context.Context, id string, events ...domain.RoundEvent,
) (*domain.Round, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.failSave {
		return nil, fmt.Errorf("event store unavailable")
	}
	m.events[id] = append(m.events[id], events...)
	return domain.NewRoundFromEvents(m.events[id]), nil
}

func (m *fakeRepoManager) Load(_ context.Context, id string) (*domain.Round, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	events, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("no events found for round %s", id)
	}
	return domain.NewRoundFromEvents(events), nil
}

func (m *fakeRepoManager) AddOrUpdateRound(_ context.Context, round domain.Round) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.rounds[round.Id] = round
	return nil
}

func (m *fakeRepoManager) GetRoundWithId(_ context.Context, id string) (*domain.Round, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	round, ok := m.rounds[id]
	if !ok {
		return nil, nil
	}
	return &round, nil
}

func (m *fakeRepoManager) GetLatestRound(_ context.Context) (*domain.Round, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	var latest *domain.Round
	for id := range m.rounds {
		round := m.rounds[id]
		if latest == nil || round.OpenedAt > latest.OpenedAt {
			latest = &round
		}
	}
	return latest, nil
}

func (m *fakeRepoManager) GetRoundsIds(
	_ context.Context, openedAfter, openedBefore int64,
) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	ids := make([]string, 0, len(m.rounds))
	for id, round := range m.rounds {
		if round.OpenedAt < openedAfter {
			continue
		}
		if openedBefore > 0 && round.OpenedAt > openedBefore {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *fakeRepoManager) AddOutcome(_ context.Context, outcome domain.Outcome) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func (m *fakeRepoManager) GetLatestOutcome(_ context.Context) (*domain.Outcome, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if len(m.outcomes) <= 0 {
		return nil, nil
	}
	outcome := m.outcomes[len(m.outcomes)-1]
	return &outcome, nil
}

type transfer struct {
	recipient string
	amount    uint64
}

type fakeWallet struct {
	lock         sync.Mutex
	credited     uint64
	transfers    []transfer
	failCredit   bool
	failTransfer bool
}

func (w *fakeWallet) Credit(_ context.Context, amount uint64) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.failCredit {
		return fmt.Errorf("custody account unreachable")
	}
	w.credited += amount
	return nil
}

func (w *fakeWallet) Transfer(_ context.Context, recipient string, amount uint64) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.failTransfer {
		return fmt.Errorf("custody account unreachable")
	}
	w.transfers = append(w.transfers, transfer{recipient, amount})
	return nil
}

func (w *fakeWallet) Balance(_ context.Context) (uint64, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.credited, nil
}

func (w *fakeWallet) Close() {}

type fakeOracle struct {
	lock         sync.Mutex
	requests     int
	failRequest  bool
	fulfillments chan ports.RandomnessFulfillment
}

func (o *fakeOracle) Request(_ context.Context, _ ports.RandomnessParams) (string, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.failRequest {
		return "", fmt.Errorf("oracle unreachable")
	}
	o.requests++
	return fmt.Sprintf("req-%d", o.requests), nil
}

func (o *fakeOracle) Fulfillments() <-chan ports.RandomnessFulfillment {
	return o.fulfillments
}

func (o *fakeOracle) Close() {}

type fakeScheduler struct {
	started bool
	tasks   int
}

func (s *fakeScheduler) Start() { s.started = true }
func (s *fakeScheduler) Stop()  { s.started = false }
func (s *fakeScheduler) ScheduleTaskRecurring(_ time.Duration, _ func()) error {
	s.tasks++
	return nil
}
