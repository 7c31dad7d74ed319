package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Datadir  string
	Port     uint32
	LogLevel int

	StakeAmount   uint64
	RoundInterval int64

	DbType      string
	EventDbType string
	DbDir       string
	EventDbDir  string

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
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir              = "DATADIR"
	Port                 = "PORT"
	LogLevel             = "LOG_LEVEL"
	StakeAmount          = "STAKE_AMOUNT"
	RoundInterval        = "ROUND_INTERVAL"
	DbType               = "DB_TYPE"
	EventDbType          = "EVENT_DB_TYPE"
	OracleType           = "ORACLE_TYPE"
	OracleURL            = "ORACLE_URL"
	OracleConfirmations  = "ORACLE_CONFIRMATIONS"
	OracleNumValues      = "ORACLE_NUM_VALUES"
	OracleResourceBudget = "ORACLE_RESOURCE_BUDGET"
	OracleRequestClass   = "ORACLE_REQUEST_CLASS"
	OracleFulfillDelay   = "ORACLE_FULFILL_DELAY"
	WalletType           = "WALLET_TYPE"
	WalletURL            = "WALLET_URL"
	KeeperInterval       = "KEEPER_INTERVAL"
	NoKeeper             = "NO_KEEPER"

	defaultDatadir              = appDataDir("rafflepoold")
	DefaultPort                 = 7070
	defaultLogLevel             = 4
	defaultStakeAmount          = 1000
	defaultRoundInterval        = 3600
	defaultDbType               = "sqlite"
	defaultEventDbType          = "badger"
	defaultOracleType           = "inmemory"
	defaultOracleConfirmations  = 3
	defaultOracleNumValues      = 1
	defaultOracleResourceBudget = 100000
	defaultOracleRequestClass   = "standard"
	defaultOracleFulfillDelay   = 5 * time.Second
	defaultWalletType           = "inmemory"
	defaultKeeperInterval       = time.Minute
	defaultNoKeeper             = false
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("RAFFLEPOOL")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(StakeAmount, defaultStakeAmount)
	viper.SetDefault(RoundInterval, defaultRoundInterval)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(OracleType, defaultOracleType)
	viper.SetDefault(OracleConfirmations, defaultOracleConfirmations)
	viper.SetDefault(OracleNumValues, defaultOracleNumValues)
	viper.SetDefault(OracleResourceBudget, defaultOracleResourceBudget)
	viper.SetDefault(OracleRequestClass, defaultOracleRequestClass)
	viper.SetDefault(OracleFulfillDelay, defaultOracleFulfillDelay)
	viper.SetDefault(WalletType, defaultWalletType)
	viper.SetDefault(KeeperInterval, defaultKeeperInterval)
	viper.SetDefault(NoKeeper, defaultNoKeeper)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	return &Config{
		Datadir:              viper.GetString(Datadir),
		Port:                 viper.GetUint32(Port),
		LogLevel:             viper.GetInt(LogLevel),
		StakeAmount:          viper.GetUint64(StakeAmount),
		RoundInterval:        viper.GetInt64(RoundInterval),
		DbType:               viper.GetString(DbType),
		EventDbType:          viper.GetString(EventDbType),
		DbDir:                dbPath,
		EventDbDir:           dbPath,
		OracleType:           viper.GetString(OracleType),
		OracleURL:            viper.GetString(OracleURL),
		OracleConfirmations:  viper.GetUint32(OracleConfirmations),
		OracleNumValues:      viper.GetUint32(OracleNumValues),
		OracleResourceBudget: viper.GetUint64(OracleResourceBudget),
		OracleRequestClass:   viper.GetString(OracleRequestClass),
		OracleFulfillDelay:   viper.GetDuration(OracleFulfillDelay),
		WalletType:           viper.GetString(WalletType),
		WalletURL:            viper.GetString(WalletURL),
		KeeperInterval:       viper.GetDuration(KeeperInterval),
		NoKeeper:             viper.GetBool(NoKeeper),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func appDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(home, "."+appName)
}
