package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"tallybook/internal/config"
	"tallybook/internal/database"
	"tallybook/internal/logger"
	"tallybook/internal/rollup"
	"tallybook/internal/router"
	"tallybook/internal/services"
)

var commands = []subcommands.Command{
	&driftCmd{},
	&repairCmd{},
	&replayCmd{},
}

// window holds the flags shared by the summary commands.
type window struct {
	granularity string
	from        string
	to          string
}

func (w *window) setFlags(f *flag.FlagSet) {
	f.StringVar(&w.granularity, "g", string(rollup.Monthly), "summary granularity (daily, weekly, monthly, yearly, category_daily, category_monthly, all)")
	f.StringVar(&w.from, "from", "", "range start, YYYY-MM-DD (defaults to January 1st of the current year)")
	f.StringVar(&w.to, "to", "", "range end, YYYY-MM-DD (defaults to today)")
}

// parse resolves the flags into granularities and a date range.
func (w *window) parse(now time.Time) ([]rollup.Granularity, time.Time, time.Time, error) {
	var granularities []rollup.Granularity
	if w.granularity == "all" {
		granularities = rollup.All
	} else {
		g, err := rollup.Parse(w.granularity)
		if err != nil {
			return nil, time.Time{}, time.Time{}, err
		}
		granularities = []rollup.Granularity{g}
	}

	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	var err error
	if w.from != "" {
		if from, err = time.Parse(time.DateOnly, w.from); err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if w.to != "" {
		if to, err = time.Parse(time.DateOnly, w.to); err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if from.After(to) {
		return nil, time.Time{}, time.Time{}, errors.New("-from must not be after -to")
	}
	return granularities, from, to, nil
}

// openServices connects to the configured database.
func openServices() (*router.Services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	dbConfig := database.NewConfig(cfg)
	manager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := manager.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}
	return router.NewServices(manager.DB(), dbConfig.TxOptions(), cfg.ReconcileWorkers), closeFn, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

type driftCmd struct {
	window
	account string
}

func (*driftCmd) Name() string     { return "drift" }
func (*driftCmd) Synopsis() string { return "report summary rows that disagree with the transactions" }
func (*driftCmd) Usage() string {
	return `reconcile drift [-account <id>] [-g <granularity>] [-from <date>] [-to <date>]

  Recomputes summary rows from posted transactions and prints every row whose
  stored totals differ. Without -account every active account is scanned.
  Exits with status 1 when drift is found.
`
}

func (c *driftCmd) SetFlags(f *flag.FlagSet) {
	c.window.setFlags(f)
	f.StringVar(&c.account, "account", "", "account ID (defaults to every active account)")
}

func (c *driftCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	granularities, from, to, err := c.window.parse(time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	svc, closeFn, err := openServices()
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	var ids []string
	if c.account != "" {
		ids = []string{c.account}
	}

	var reports []*services.DriftReport
	for _, g := range granularities {
		batch, err := svc.Consistency.ScanAccounts(ids, from, to, g)
		if err != nil {
			return fail(err)
		}
		reports = append(reports, batch...)
	}

	dirty := dirtyReports(reports)
	if err := writeJSON(os.Stdout, dirty); err != nil {
		return fail(err)
	}
	if len(dirty) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func dirtyReports(reports []*services.DriftReport) []*services.DriftReport {
	dirty := []*services.DriftReport{}
	for _, r := range reports {
		if !r.Clean() {
			dirty = append(dirty, r)
		}
	}
	return dirty
}

type repairCmd struct {
	window
	account string
	actor   string
}

func (*repairCmd) Name() string     { return "repair" }
func (*repairCmd) Synopsis() string { return "overwrite drifted summary rows with recomputed totals" }
func (*repairCmd) Usage() string {
	return `reconcile repair -account <id> -actor <id> [-g <granularity>] [-from <date>] [-to <date>]

  Recomputes summary rows of one account under its lock and overwrites every
  drifted row. Use -g all to repair every granularity.
`
}

func (c *repairCmd) SetFlags(f *flag.FlagSet) {
	c.window.setFlags(f)
	f.StringVar(&c.account, "account", "", "account ID (required)")
	f.StringVar(&c.actor, "actor", "", "ID of the user performing the repair (required)")
}

func (c *repairCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.actor == "" {
		fmt.Fprintln(os.Stderr, "Error: -account and -actor are required")
		return subcommands.ExitUsageError
	}
	granularities, from, to, err := c.window.parse(time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	svc, closeFn, err := openServices()
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	var reports []*services.DriftReport
	for _, g := range granularities {
		report, err := svc.Consistency.Repair(c.actor, c.account, from, to, g)
		if err != nil {
			return fail(err)
		}
		reports = append(reports, report)
	}
	if err := writeJSON(os.Stdout, reports); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type replayCmd struct {
	account string
}

func (*replayCmd) Name() string     { return "replay" }
func (*replayCmd) Synopsis() string { return "recompute account balances from the ledger" }
func (*replayCmd) Usage() string {
	return `reconcile replay [-account <id>]

  Replays the ledger of one account (or every active account) from its
  initial balance and compares the result with the stored balance. Exits with
  status 1 when any account disagrees.
`
}

func (c *replayCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "account ID (defaults to every active account)")
}

func (c *replayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, closeFn, err := openServices()
	if err != nil {
		return fail(err)
	}
	defer closeFn()

	ids := []string{c.account}
	if c.account == "" {
		if ids, err = svc.Accounts.GetAccountIDs(); err != nil {
			return fail(err)
		}
	}

	status := subcommands.ExitSuccess
	replays := make([]*services.LedgerReplay, 0, len(ids))
	for _, id := range ids {
		replay, err := svc.Ledger.Replay(id)
		if err != nil {
			return fail(err)
		}
		if !replay.Consistent {
			status = subcommands.ExitFailure
		}
		replays = append(replays, replay)
	}
	if err := writeJSON(os.Stdout, replays); err != nil {
		return fail(err)
	}
	return status
}
