package commands

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/catalog"
	"github.com/openfroyo/zbxsync/pkg/config"
	"github.com/openfroyo/zbxsync/pkg/policy"
	"github.com/openfroyo/zbxsync/pkg/telemetry"
)

// loadSettings reads the environment. Commands that talk to the API need the
// full, validated settings; the others only need the template data.
func loadSettings(forAPI bool) (*config.Settings, error) {
	if forAPI {
		return config.FromEnv(lookupEnv)
	}
	return config.Parse(lookupEnv)
}

func newLogger(s *config.Settings) (zerolog.Logger, error) {
	cfg := telemetry.DefaultConfig().Logging
	for _, v := range []string{s.LogLevel, logLevel} {
		if v != "" {
			cfg.Level = v
		}
	}
	for _, v := range []string{s.LogFormat, logFormat} {
		if v != "" {
			cfg.Format = v
		}
	}
	return telemetry.NewLogger(cfg)
}

// loadCatalog renders, validates and policy-checks the catalog named by
// --catalog, or the built-in one.
func loadCatalog(ctx context.Context, s *config.Settings, logger zerolog.Logger) (*catalog.Catalog, error) {
	loader := catalog.NewLoader(*s)

	var (
		c   *catalog.Catalog
		err error
	)
	if catalogPath == "" {
		c, err = loader.Default()
	} else {
		c, err = loader.Load(catalogPath)
	}
	if err != nil {
		return nil, err
	}

	policies, err := policy.NewEngine(ctx, logger)
	if err != nil {
		return nil, err
	}
	if err := policies.LoadPaths(ctx, policyPaths); err != nil {
		return nil, err
	}
	if err := policies.Check(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
