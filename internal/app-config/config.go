package appconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/rafflepool/rafflepool/internal/core/application"
	"github.com/rafflepool/rafflepool/internal/core/ports"
	"github.com/rafflepool/rafflepool/internal/infrastructure/db"
	inmemorylivestore "github.com/rafflepool/rafflepool/internal/infrastructure/live-store/inmemory"
	httporacle "github.com/rafflepool/rafflepool/internal/infrastructure/oracle/http"
	inmemoryoracle "github.com/rafflepool/rafflepool/internal/infrastructure/oracle/inmemory"
	timescheduler "github.com/rafflepool/rafflepool/internal/infrastructure/scheduler/gocron"
	httpwallet "github.com/rafflepool/rafflepool/internal/infrastructure/wallet/http"
	inmemorywallet "github.com/rafflepool/rafflepool/internal/infrastructure/wallet/inmemory"
	log "github.com/sirupsen/logrus"
)

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedOracles = supportedType{
		"inmemory": {},
		"http":     {},
	}
	supportedWallets = supportedType{
		"inmemory": {},
		"http":     {},
	}
)

type Config struct {
	DbType      string
	EventDbType string
	DbDir       string
	EventDbDir  string

	StakeAmount   uint64
	RoundInterval int64

	OracleType           string
	OracleURL            string
	OracleConfirmations  uint32
	OracleNumValues      uint32
	OracleResourceBudget uint64
	OracleRequestClass   string
	OracleFulfillDelay   time.Duration

	WalletType string
	WalletURL  string

	KeeperInterval time.Duration
	NoKeeper       bool

	repo      ports.RepoManager
	svc       application.Service
	wallet    ports.WalletService
	oracle    ports.RandomnessOracle
	scheduler ports.SchedulerService
	liveStore ports.LiveStore
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedOracles.supports(c.OracleType) {
		return fmt.Errorf("oracle type not supported, please select one of: %s", supportedOracles)
	}
	if !supportedWallets.supports(c.WalletType) {
		return fmt.Errorf("wallet type not supported, please select one of: %s", supportedWallets)
	}
	if c.StakeAmount <= 0 {
		return fmt.Errorf("invalid stake amount, must be greater than 0")
	}
	if c.RoundInterval < 2 {
		return fmt.Errorf("invalid round interval, must be at least 2 seconds")
	}
	if c.OracleNumValues <= 0 {
		return fmt.Errorf("invalid oracle num values, must be greater than 0")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.walletService(); err != nil {
		return err
	}
	if err := c.oracleService(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) WalletService() ports.WalletService {
	return c.wallet
}

func (c *Config) repoManager() error {
	var svc ports.RepoManager
	var err error
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err = db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) walletService() error {
	var svc ports.WalletService
	var err error
	switch c.WalletType {
	case "inmemory":
		svc = inmemorywallet.NewService()
	case "http":
		svc, err = httpwallet.NewService(c.WalletURL)
	default:
		err = fmt.Errorf("unknown wallet type")
	}
	if err != nil {
		return err
	}

	c.wallet = svc
	return nil
}

func (c *Config) oracleService() error {
	var svc ports.RandomnessOracle
	var err error
	switch c.OracleType {
	case "inmemory":
		svc, err = inmemoryoracle.NewService(c.OracleFulfillDelay)
	case "http":
		svc, err = httporacle.NewService(c.OracleURL)
	default:
		err = fmt.Errorf("unknown oracle type")
	}
	if err != nil {
		return err
	}

	c.oracle = svc
	return nil
}

func (c *Config) liveStoreService() error {
	c.liveStore = inmemorylivestore.NewLiveStore()
	return nil
}

func (c *Config) schedulerService() error {
	c.scheduler = timescheduler.NewScheduler()
	return nil
}

func (c *Config) appService() error {
	keeperInterval := c.KeeperInterval
	if c.NoKeeper {
		keeperInterval = 0
	}

	svc, err := application.NewService(
		c.StakeAmount,
		time.Duration(c.RoundInterval)*time.Second,
		ports.RandomnessParams{
			Confirmations:  c.OracleConfirmations,
			NumValues:      c.OracleNumValues,
			ResourceBudget: c.OracleResourceBudget,
			RequestClass:   c.OracleRequestClass,
		},
		keeperInterval,
		c.wallet, c.repo, c.oracle, c.liveStore, c.scheduler,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
