package restservice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	appconfig "github.com/rafflepool/rafflepool/internal/app-config"
	interfaces "github.com/rafflepool/rafflepool/internal/interface"
	"github.com/rafflepool/rafflepool/internal/interface/rest/handlers"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port uint32
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}

type service struct {
	config    Config
	appConfig *appconfig.Config
	server    *http.Server
}

func NewService(
	svcConfig Config, appConfig *appconfig.Config,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	return &service{svcConfig, appConfig, nil}, nil
}

func (s *service) Start() error {
	appSvc, err := s.appConfig.AppService()
	if err != nil {
		return err
	}
	if err := appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	appHandler := handlers.NewHandler(appSvc)
	appHandler.RegisterRoutes(router)

	s.server = &http.Server{
		Addr:              s.config.address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// nolint:all
	go s.server.ListenAndServe()
	log.Infof("started listening at %s", s.config.address())

	return nil
}

func (s *service) Stop() {
	//nolint:all
	s.server.Shutdown(context.Background())
	log.Info("stopped rest server")

	appSvc, _ := s.appConfig.AppService()
	if appSvc != nil {
		appSvc.Stop()
		log.Info("stopped app service")
	}
}
