package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrymomot/oauthkit/pkg/authz"
	"github.com/dmitrymomot/oauthkit/pkg/config"
	"github.com/dmitrymomot/oauthkit/pkg/connector"
	"github.com/dmitrymomot/oauthkit/pkg/httpserver"
	"github.com/dmitrymomot/oauthkit/pkg/idp"
	"github.com/dmitrymomot/oauthkit/pkg/logger"
	"github.com/dmitrymomot/oauthkit/pkg/storage"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"production"`

	// CallerHeader names the header a trusted gateway uses to pass the
	// authenticated caller's permission set.
	CallerHeader string `env:"CALLER_HEADER" envDefault:"X-Caller"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		appCfg   appConfig
		storeCfg storage.Config
		idpCfg   idp.Config
		connCfg  connector.Config
		httpCfg  httpserver.Config
	)
	if err := errors.Join(
		config.Load(&appCfg),
		config.Load(&storeCfg),
		config.Load(&idpCfg),
		config.Load(&connCfg),
		config.Load(&httpCfg),
	); err != nil {
		return err
	}

	logOpt := logger.WithProduction("connector")
	if appCfg.Env == "development" {
		logOpt = logger.WithDevelopment("connector")
	}
	log := logger.New(logOpt)

	ctx := context.Background()

	rdb, err := storage.Connect(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()
	store := storage.NewRedisStore(rdb, storeCfg.Namespace)

	svc := connector.NewService(
		connCfg,
		store,
		idp.New(idpCfg),
		connector.BaseVendor{},
		connector.WithLogger(log),
	)
	router := svc.Router(authz.CallerFromHeader(appCfg.CallerHeader))

	log.Info("starting connector",
		logger.Component("main"),
		logger.Vendor(connCfg.VendorPrefix),
	)

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, router)
}
