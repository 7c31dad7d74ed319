package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	UndefinedStage RoundStage = iota
	OpenStage
	CalculatingStage
)

type RoundStage int

func (s RoundStage) String() string {
	switch s {
	case OpenStage:
		return "OPEN"
	case CalculatingStage:
		return "CALCULATING"
	default:
		return "UNDEFINED"
	}
}

type Stage struct {
	Code  RoundStage
	Ended bool
}

// Entry is one paid ticket in the current round. The same participant may
// hold any number of entries; each one raises their odds proportionally.
type Entry struct {
	Participant string
	Amount      uint64
}

// Readiness is the diagnostic payload returned to any caller asking whether
// the round can be concluded. It is surfaced, never only logged.
type Readiness struct {
	Ready        bool
	Balance      uint64
	Participants int
	Stage        RoundStage
}

// Round is the event-sourced aggregate owning one lottery cycle:
// entries are collected while OPEN, a single randomness request is
// outstanding while CALCULATING, and the aggregate ends when the winner
// is paid. The next cycle is a fresh aggregate opened at the conclusion
// timestamp.
type Round struct {
	Id          string
	Stake       uint64
	OpenedAt    int64
	ConcludedAt int64
	Entries     []Entry
	PoolAmount  uint64
	RequestId   string
	RandomValue uint64
	Winner      string
	Prize       uint64
	Stage       Stage
	Version     uint
	changes     []RoundEvent
}

func NewRound(stake uint64) *Round {
	return &Round{
		Id:      uuid.New().String(),
		Stake:   stake,
		Entries: make([]Entry, 0),
		changes: make([]RoundEvent, 0),
	}
}

func NewRoundFromEvents(events []RoundEvent) *Round {
	r := &Round{}

	for _, event := range events {
		r.On(event, true)
	}

	r.changes = append([]RoundEvent{}, events...)

	return r
}

func (r *Round) Events() []RoundEvent {
	return r.changes
}

func (r *Round) On(event RoundEvent, replayed bool) {
	switch e := event.(type) {
	case RoundOpened:
		r.Stage.Code = OpenStage
		r.Id = e.Id
		r.Stake = e.Stake
		r.OpenedAt = e.Timestamp
		if r.Entries == nil {
			r.Entries = make([]Entry, 0)
		}
	case EntryRegistered:
		r.Entries = append(r.Entries, Entry{
			Participant: e.Participant,
			Amount:      e.Amount,
		})
		r.PoolAmount += e.Amount
	case CalculationStarted:
		r.Stage.Code = CalculatingStage
		r.RequestId = e.RequestId
	case RoundConcluded:
		r.Stage.Ended = true
		r.RandomValue = e.RandomValue
		r.Winner = e.Winner
		r.Prize = e.Prize
		r.ConcludedAt = e.Timestamp
	}

	if replayed {
		r.Version++
	}
}

func (r *Round) Open(at int64) ([]RoundEvent, error) {
	empty := Stage{}
	if r.Stage != empty {
		return nil, fmt.Errorf("not in a valid stage to open the round")
	}
	if at <= 0 {
		return nil, fmt.Errorf("missing opening timestamp")
	}

	event := RoundOpened{
		Id:        r.Id,
		Stake:     r.Stake,
		Timestamp: at,
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

// RegisterEntry is the admission gate: the round must be OPEN and the
// amount must cover the stake. There is no upper bound on repeat entries.
func (r *Round) RegisterEntry(participant string, amount uint64) ([]RoundEvent, error) {
	if !r.IsOpen() {
		return nil, ErrRoundNotOpen
	}
	if len(participant) <= 0 {
		return nil, fmt.Errorf("missing participant address")
	}
	if amount < r.Stake {
		return nil, InsufficientStakeError{Amount: amount, Stake: r.Stake}
	}

	event := EntryRegistered{
		Id:          r.Id,
		Participant: participant,
		Amount:      amount,
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

// StartCalculation flips the round to CALCULATING. The stage itself is the
// mutual-exclusion flag: a calculating round rejects entries and any second
// conclusion attempt until the randomness is fulfilled.
func (r *Round) StartCalculation(requestId string, at int64) ([]RoundEvent, error) {
	if !r.IsOpen() {
		return nil, ErrRoundNotOpen
	}
	if len(r.Entries) <= 0 {
		return nil, ErrEmptyLedger
	}
	if len(requestId) <= 0 {
		return nil, fmt.Errorf("missing randomness request id")
	}

	event := CalculationStarted{
		Id:        r.Id,
		RequestId: requestId,
		Timestamp: at,
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

func (r *Round) Conclude(randomValue uint64, at int64) ([]RoundEvent, error) {
	if !r.IsCalculating() {
		return nil, fmt.Errorf("not in a valid stage to conclude the round")
	}

	winner, err := r.WinnerAt(randomValue)
	if err != nil {
		return nil, err
	}

	event := RoundConcluded{
		Id:          r.Id,
		RequestId:   r.RequestId,
		RandomValue: randomValue,
		Winner:      winner,
		Prize:       r.PoolAmount,
		Timestamp:   at,
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

// WinnerAt derives the winner from a random value: entries[value mod count].
// Pure; the empty-ledger error is defensive and unreachable when readiness
// is enforced before every conclusion.
func (r *Round) WinnerAt(randomValue uint64) (string, error) {
	if len(r.Entries) <= 0 {
		return "", ErrEmptyLedger
	}
	return r.Entries[randomValue%uint64(len(r.Entries))].Participant, nil
}

// Readiness evaluates the four conclusion conditions: interval elapsed,
// round OPEN, pool balance above zero, at least one entry.
func (r *Round) Readiness(requiredInterval time.Duration, now int64) Readiness {
	diag := Readiness{
		Balance:      r.PoolAmount,
		Participants: len(r.Entries),
		Stage:        r.Stage.Code,
	}
	diag.Ready = r.IsOpen() &&
		time.Duration(now-r.OpenedAt)*time.Second >= requiredInterval &&
		r.PoolAmount > 0 &&
		len(r.Entries) > 0
	return diag
}

func (r *Round) IsOpen() bool {
	return r.Stage.Code == OpenStage && !r.Stage.Ended
}

func (r *Round) IsCalculating() bool {
	return r.Stage.Code == CalculatingStage && !r.Stage.Ended
}

func (r *Round) IsConcluded() bool {
	return r.Stage.Ended
}

func (r *Round) raise(event RoundEvent) {
	if r.changes == nil {
		r.changes = make([]RoundEvent, 0)
	}
	r.changes = append(r.changes, event)
	r.On(event, false)
}
