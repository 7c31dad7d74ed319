package application

import "github.com/rafflepool/rafflepool/internal/core/ports"

type ServiceInfo struct {
	Stake         uint64
	RoundInterval int64
	OracleParams  ports.RandomnessParams
}

// LotteryEvent is one of the two externally observable notifications.
type LotteryEvent interface {
	isLotteryEvent()
}

func (e ParticipantEntered) isLotteryEvent() {}
func (e WinnerSelected) isLotteryEvent()     {}

type ParticipantEntered struct {
	RoundId      string
	Participant  string
	Amount       uint64
	PoolBalance  uint64
	Participants int
}

type WinnerSelected struct {
	RoundId     string
	Winner      string
	Prize       uint64
	RandomValue uint64
	RequestId   string
}
