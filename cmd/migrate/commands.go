package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/subcommands"

	"tallybook/internal/config"
	"tallybook/internal/database"
	"tallybook/internal/logger"
)

var commands = []subcommands.Command{
	&upCmd{},
	&downCmd{},
	&versionCmd{},
	&forceCmd{},
}

// withMigrator opens the configured database's migrator, runs fn and maps
// the outcome onto an exit status.
func withMigrator(fn func(m *migrate.Migrate) error) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Errorf("failed to load config: %v", err)
		return subcommands.ExitFailure
	}
	m, closeFn, err := database.OpenMigrations(database.NewConfig(cfg))
	if err != nil {
		logger.Get().Errorf("%v", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	if err := fn(m); err != nil {
		logger.Get().Errorf("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// ignoreNoChange treats "nothing to do" as success.
func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

type upCmd struct{}

func (*upCmd) Name() string     { return "up" }
func (*upCmd) Synopsis() string { return "apply every pending migration" }
func (*upCmd) Usage() string    { return "up\n" }

func (*upCmd) SetFlags(*flag.FlagSet) {}

func (*upCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withMigrator(func(m *migrate.Migrate) error {
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Get().Info("Migrations applied successfully")
		return nil
	})
}

type downCmd struct {
	steps int
}

func (*downCmd) Name() string     { return "down" }
func (*downCmd) Synopsis() string { return "roll back applied migrations" }
func (*downCmd) Usage() string    { return "down [-n steps]\n" }

func (c *downCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.steps, "n", 1, "number of migrations to roll back")
}

func (c *downCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.steps < 1 {
		logger.Get().Errorf("-n must be at least 1")
		return subcommands.ExitUsageError
	}
	return withMigrator(func(m *migrate.Migrate) error {
		if err := ignoreNoChange(m.Steps(-c.steps)); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Get().Infof("Rolled back %d migration(s)", c.steps)
		return nil
	})
}

type versionCmd struct{}

func (*versionCmd) Name() string     { return "version" }
func (*versionCmd) Synopsis() string { return "print the current schema version" }
func (*versionCmd) Usage() string    { return "version\n" }

func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withMigrator(func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Get().Info("No migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Get().Infow("schema version", "version", version, "dirty", dirty)
		return nil
	})
}

// forceCmd clears the dirty flag after a failed migration was fixed by hand.
type forceCmd struct {
	version int
}

func (*forceCmd) Name() string     { return "force" }
func (*forceCmd) Synopsis() string { return "set the schema version without running migrations" }
func (*forceCmd) Usage() string    { return "force -v version\n" }

func (c *forceCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.version, "v", -1, "version to record")
}

func (c *forceCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.version < 0 {
		logger.Get().Errorf("-v is required")
		return subcommands.ExitUsageError
	}
	return withMigrator(func(m *migrate.Migrate) error {
		if err := m.Force(c.version); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		logger.Get().Infof("Schema version forced to %d", c.version)
		return nil
	})
}
