package httpservice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/application"
	"github.com/ephesafe/ephesafed/internal/core/ports"
	interfaces "github.com/ephesafe/ephesafed/internal/interface"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Port       uint32
	WithFaucet bool
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	return nil
}

type service struct {
	config Config
	server *http.Server
}

func NewService(
	config Config,
	appSvc application.Service,
	adminSvc application.AdminService,
	custody ports.CustodyService,
) (interfaces.Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}

	h := &handler{appSvc: appSvc, adminSvc: adminSvc, custody: custody}

	router := mux.NewRouter()
	router.Use(panicRecoveryMiddleware, requestLoggerMiddleware)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/safes", h.mintSafe).Methods(http.MethodPost)
	v1.HandleFunc("/safes", h.listSafes).Methods(http.MethodGet)
	v1.HandleFunc("/safes/{id}", h.getSafe).Methods(http.MethodGet)
	v1.HandleFunc("/safes/{id}/claim", h.claimSafe).Methods(http.MethodPost)
	v1.HandleFunc("/safes/{id}/claim-at", h.claimSafeAtAddress).Methods(http.MethodPost)
	v1.HandleFunc("/safes/{id}/destroy", h.destroySafe).Methods(http.MethodPost)
	v1.HandleFunc("/safes/{id}/emergency-unlock", h.emergencyUnlockState).
		Methods(http.MethodGet)
	v1.HandleFunc("/safes/{id}/emergency-unlock", h.approveEmergencyUnlock).
		Methods(http.MethodPost)
	v1.HandleFunc("/safes/{id}/uri", h.updateTokenUri).Methods(http.MethodPut)
	v1.HandleFunc("/safes/{id}/issuer", h.updateTokenIssuer).Methods(http.MethodPut)
	v1.HandleFunc("/safes/{id}/authorizers", h.addAuthorizer).Methods(http.MethodPost)

	v1.HandleFunc("/admin/pause", h.pause).Methods(http.MethodPost)
	v1.HandleFunc("/admin/unpause", h.unpause).Methods(http.MethodPost)
	v1.HandleFunc("/admin/roles", h.grantRole).Methods(http.MethodPost)
	v1.HandleFunc("/admin/roles", h.revokeRole).Methods(http.MethodDelete)
	v1.HandleFunc("/admin/roles", h.hasRole).Methods(http.MethodGet)
	v1.HandleFunc("/admin/info", h.registryInfo).Methods(http.MethodGet)

	if config.WithFaucet {
		v1.HandleFunc("/faucet/deposit", h.faucetDeposit).Methods(http.MethodPost)
		v1.HandleFunc("/faucet/approve", h.faucetApprove).Methods(http.MethodPost)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: router,
	}
	return &service{config: config, server: server}, nil
}

func (s *service) Start() error {
	log.Infof("started listening at %s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server exited")
		}
	}()
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// nolint:errcheck
	s.server.Shutdown(ctx)
	log.Info("stopped http server")
}
