package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rafflepool/rafflepool/internal/core/domain"
	"github.com/rafflepool/rafflepool/internal/core/ports"
	badgerdb "github.com/rafflepool/rafflepool/internal/infrastructure/db/badger"
	sqlitedb "github.com/rafflepool/rafflepool/internal/infrastructure/db/sqlite"
)

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.RoundEventRepository, error){
		"badger": badgerdb.NewRoundEventRepository,
	}
	roundStoreTypes = map[string]func(...interface{}) (domain.RoundRepository, error){
		"badger": badgerdb.NewRoundRepository,
		"sqlite": sqlitedb.NewRoundRepository,
	}
	outcomeStoreTypes = map[string]func(...interface{}) (domain.OutcomeRepository, error){
		"badger": badgerdb.NewOutcomeRepository,
		"sqlite": sqlitedb.NewOutcomeRepository,
	}
)

const sqliteDbFile = "sqlite.db"

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore   domain.RoundEventRepository
	roundStore   domain.RoundRepository
	outcomeStore domain.OutcomeRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid event store type: %s", config.EventStoreType)
	}

	roundStoreFactory, ok := roundStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	outcomeStoreFactory, ok := outcomeStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	dataStoreConfig := config.DataStoreConfig
	if config.DataStoreType == "sqlite" {
		db, err := openAndMigrateSqlite(config.DataStoreConfig)
		if err != nil {
			return nil, err
		}
		dataStoreConfig = []interface{}{db}
	}

	eventStore, err := eventStoreFactory(config.EventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}

	roundStore, err := roundStoreFactory(dataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create round store: %w", err)
	}

	outcomeStore, err := outcomeStoreFactory(dataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome store: %w", err)
	}

	return &service{
		eventStore:   eventStore,
		roundStore:   roundStore,
		outcomeStore: outcomeStore,
	}, nil
}

func (s *service) Events() domain.RoundEventRepository {
	return s.eventStore
}

func (s *service) Rounds() domain.RoundRepository {
	return s.roundStore
}

func (s *service) Outcomes() domain.OutcomeRepository {
	return s.outcomeStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.roundStore.Close()
	s.outcomeStore.Close()
}

func openAndMigrateSqlite(config []interface{}) (*sql.DB, error) {
	if len(config) != 1 {
		return nil, errors.New("invalid sqlite config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, errors.New("invalid base directory")
	}

	db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(sqlitedb.MigrationFs, sqlitedb.MigrationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to migrate up: %w", err)
	}

	return db, nil
}
