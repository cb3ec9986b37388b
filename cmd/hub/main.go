package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/C010UR/fangi-prototype-sub000/grants"
	fakecoderepo "github.com/C010UR/fangi-prototype-sub000/grants/repofake"
	"github.com/C010UR/fangi-prototype-sub000/internal/config"
	"github.com/C010UR/fangi-prototype-sub000/secrets"
	"github.com/C010UR/fangi-prototype-sub000/server"
	"github.com/C010UR/fangi-prototype-sub000/servers"
	fakeserverrepo "github.com/C010UR/fangi-prototype-sub000/servers/fakerepo"
	"github.com/C010UR/fangi-prototype-sub000/token"
	refreshrepofake "github.com/C010UR/fangi-prototype-sub000/token/refresh/repofake"
	"github.com/C010UR/fangi-prototype-sub000/users"
	fakeuserrepo "github.com/C010UR/fangi-prototype-sub000/users/repofake"
)

const bootstrapServerName = "bootstrap"

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running hub")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("hub stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config.Load")
	}
	zerolog.SetGlobalLevel(logLevel(cfg.Environment))
	displayAppname(cfg.AppName)

	hub, err := buildHub(cfg)
	if err != nil {
		return errors.Wrap(err, "buildHub")
	}

	httpServer := &http.Server{Addr: cfg.Addr(), Handler: hub}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildHub(cfg *config.Config) (*server.Server, error) {
	secretsService, err := secrets.NewService(cfg.AppSecret)
	if err != nil {
		return nil, errors.Wrap(err, "secrets.NewService")
	}

	keyPair, err := loadOrGenerateKeyPair(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "loadOrGenerateKeyPair")
	}
	signer := token.NewKeyPairSigner(keyPair)

	userRepo := fakeuserrepo.NewFakeUserRepo()
	serverRepo := fakeserverrepo.NewFakeServerRepo()

	grantManager, err := grants.NewManager(
		fakecoderepo.NewFakeCodeRepo(),
		serverRepo,
		secretsService,
		grants.WithCodeTTL(cfg.AuthCodeTTL),
	)
	if err != nil {
		return nil, errors.Wrap(err, "grants.NewManager")
	}

	tokenIssuer := token.NewIssuer(
		signer,
		refreshrepofake.NewFakeRefreshTokenRepo(),
		userRepo,
		secretsService,
		cfg.Issuer(),
		token.WithTokenExpiry(cfg.AccessTokenTTL, cfg.IDTokenTTL, cfg.RefreshTokenTTL),
	)

	if err := bootstrapRegistry(serverRepo, userRepo, secretsService); err != nil {
		return nil, errors.Wrap(err, "bootstrapRegistry")
	}

	return server.New(*cfg, server.Deps{
		Grants:       grantManager,
		Issuer:       tokenIssuer,
		Signer:       signer,
		Users:        userRepo,
		Authenticate: server.BearerAuthenticator(signer, userRepo),
	})
}

// loadOrGenerateKeyPair prefers the configured PEM key so tokens survive
// restarts; without one an ephemeral pair is generated and every outstanding
// token dies with the process.
func loadOrGenerateKeyPair(cfg *config.Config) (*token.KeyPair, error) {
	if cfg.SigningKeyPEM != "" {
		return token.LoadKeyPairFromPEM(cfg.SigningKeyPEM)
	}
	log.Warn().Msg("no signing key configured, generating an ephemeral key pair")
	return token.GenerateRSAKeyPair(2048)
}

// bootstrapRegistry seeds a first resource server and service principal on an
// empty registry. The generated client secret is logged exactly once; it is
// stored only as a hash and cannot be recovered later.
func bootstrapRegistry(serverRepo servers.Repo, userRepo users.Repo, secretsService *secrets.Service) error {
	existing, err := serverRepo.List(0, 1)
	if err != nil {
		return errors.Wrap(err, "serverRepo.List")
	}
	if len(existing) > 0 {
		return nil
	}

	bootstrapServer := &servers.Server{
		Name:   bootstrapServerName,
		Active: true,
	}
	plaintextSecret := bootstrapServer.GenerateCredentials(secretsService)
	if err := serverRepo.Upsert(bootstrapServer); err != nil {
		return errors.Wrap(err, "serverRepo.Upsert")
	}

	serviceUser := &users.User{
		Email:    "service@localhost",
		Username: "service",
		Service:  true,
	}
	if err := userRepo.Upsert(serviceUser); err != nil {
		return errors.Wrap(err, "userRepo.Upsert")
	}

	log.Info().
		Str("client_id", bootstrapServer.ClientID).
		Str("client_secret", plaintextSecret).
		Msg("bootstrap server registered, store these credentials now")
	return nil
}

func logLevel(environment string) zerolog.Level {
	if environment == "DEV" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("hub listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "httpServer.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
