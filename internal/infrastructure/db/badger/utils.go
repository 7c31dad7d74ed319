package badgerdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rafflepool/rafflepool/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					logger.Errorf("%s", err)
				}
			}
		}()
	}

	return db, nil
}

func serializeEvents(events []domain.RoundEvent) ([][]byte, error) {
	rawEvents := make([][]byte, 0, len(events))
	for _, event := range events {
		buf, err := json.Marshal(event)
		if err != nil {
			return nil, err
		}
		rawEvents = append(rawEvents, buf)
	}
	return rawEvents, nil
}

func deserializeEvents(rawEvents [][]byte) ([]domain.RoundEvent, error) {
	events := make([]domain.RoundEvent, 0)
	for _, buf := range rawEvents {
		event, err := deserializeEvent(buf)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func deserializeEvent(buf []byte) (domain.RoundEvent, error) {
	{
		var event = domain.RoundConcluded{}
		if err := json.Unmarshal(buf, &event); err == nil && len(event.Winner) > 0 {
			return event, nil
		}
	}
	{
		var event = domain.CalculationStarted{}
		if err := json.Unmarshal(buf, &event); err == nil && len(event.RequestId) > 0 {
			return event, nil
		}
	}
	{
		var event = domain.EntryRegistered{}
		if err := json.Unmarshal(buf, &event); err == nil && len(event.Participant) > 0 {
			return event, nil
		}
	}
	{
		var event = domain.RoundOpened{}
		if err := json.Unmarshal(buf, &event); err == nil && event.Timestamp > 0 {
			return event, nil
		}
	}

	return nil, fmt.Errorf("unknown event")
}
