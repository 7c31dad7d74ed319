package main

import (
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/rafflepool/rafflepool/internal/app-config"
	"github.com/rafflepool/rafflepool/internal/config"
	restservice "github.com/rafflepool/rafflepool/internal/interface/rest"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "rafflepoold",
		Usage:   "participatory lottery daemon",
		Version: version,
		Flags:   []cli.Flag{urlFlag},
		Action:  startAction,
		Commands: cli.Commands{
			statusCmd,
			winnerCmd,
			roundsCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func startAction(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	svcConfig := restservice.Config{
		Port: cfg.Port,
	}

	appConfig := &appconfig.Config{
		EventDbType:          cfg.EventDbType,
		DbType:               cfg.DbType,
		DbDir:                cfg.DbDir,
		EventDbDir:           cfg.EventDbDir,
		StakeAmount:          cfg.StakeAmount,
		RoundInterval:        cfg.RoundInterval,
		OracleType:           cfg.OracleType,
		OracleURL:            cfg.OracleURL,
		OracleConfirmations:  cfg.OracleConfirmations,
		OracleNumValues:      cfg.OracleNumValues,
		OracleResourceBudget: cfg.OracleResourceBudget,
		OracleRequestClass:   cfg.OracleRequestClass,
		OracleFulfillDelay:   cfg.OracleFulfillDelay,
		WalletType:           cfg.WalletType,
		WalletURL:            cfg.WalletURL,
		KeeperInterval:       cfg.KeeperInterval,
		NoKeeper:             cfg.NoKeeper,
	}
	svc, err := restservice.NewService(svcConfig, appConfig)
	if err != nil {
		log.Fatal(err)
	}

	log.RegisterExitHandler(svc.Stop)

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
