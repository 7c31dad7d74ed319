package ports

import "github.com/rafflepool/rafflepool/internal/core/domain"

type RepoManager interface {
	Events() domain.RoundEventRepository
	Rounds() domain.RoundRepository
	Outcomes() domain.OutcomeRepository
	Close()
}
