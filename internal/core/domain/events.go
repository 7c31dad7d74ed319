package domain

type RoundEvent interface {
	IsEvent()
}

func (r RoundOpened) IsEvent()        {}
func (r EntryRegistered) IsEvent()    {}
func (r CalculationStarted) IsEvent() {}
func (r RoundConcluded) IsEvent()     {}

type RoundOpened struct {
	Id        string
	Stake     uint64
	Timestamp int64
}

type EntryRegistered struct {
	Id          string
	Participant string
	Amount      uint64
}

type CalculationStarted struct {
	Id        string
	RequestId string
	Timestamp int64
}

type RoundConcluded struct {
	Id          string
	RequestId   string
	RandomValue uint64
	Winner      string
	Prize       uint64
	Timestamp   int64
}
