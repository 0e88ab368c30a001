package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	goredislib "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/audit"
	"github.com/coopbooks/coopbooks/internal/config"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/lock"
	"github.com/coopbooks/coopbooks/internal/logging"
	"github.com/coopbooks/coopbooks/internal/metrics"
	"github.com/coopbooks/coopbooks/internal/retry"
	"github.com/coopbooks/coopbooks/internal/store/sqlite"
	"github.com/coopbooks/coopbooks/internal/tenant"
)

// app carries the state shared by every subcommand. Flags fill the first
// group of fields; the rest is opened on first use.
type app struct {
	configPath string
	envFile    string
	dbPath     string
	tenantID   string
	actor      string
	logLevel   string
	jsonOut    bool

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	db      *sql.DB
	redis   goredislib.UniversalClient
	tenants *tenant.Registry
}

// load reads the config file and environment and applies flag overrides.
// Relative paths in the file resolve against the file's directory.
func (a *app) load() error {
	cfg, err := config.LoadWithEnv(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	base := filepath.Dir(a.configPath)
	cfg.Database.Path = resolve(base, cfg.Database.Path)
	cfg.Audit.Path = resolve(base, cfg.Audit.Path)
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.tenantID == "" {
		a.tenantID = cfg.Coop.Tenant
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// registry opens the database on first use and returns the tenant
// registry over it.
func (a *app) registry() (*tenant.Registry, error) {
	if a.tenants != nil {
		return a.tenants, nil
	}
	db, err := sqlite.Open(a.cfg.Database.Path, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	if a.cfg.Redis.Addr != "" {
		a.redis = goredislib.NewClient(&goredislib.Options{Addr: a.cfg.Redis.Addr})
	}
	a.tenants = tenant.NewRegistry(a.openTenant)
	return a.tenants, nil
}

func (a *app) openTenant(ctx context.Context, tenantID string) (*ledger.Ledger, error) {
	opts := ledger.Options{
		LockWait:         a.cfg.Ledger.LockWait,
		RetainedEarnings: a.cfg.Ledger.RetainedEarnings,
		Audit: audit.Multi(
			audit.NewCSVSink(a.cfg.Audit.Path),
			audit.LogSink{Logger: a.logger.Named("audit")},
		),
		Metrics: a.metrics,
		Logger:  a.logger.With(zap.String("tenant", tenantID)),
	}
	if a.redis != nil {
		ro := lock.DefaultRedisOptions()
		ro.Prefix += tenantID + ":"
		opts.Locker = lock.NewRedis(a.redis, ro, a.logger)
	}
	return tenant.SQLite(a.db, opts, true)(ctx, tenantID)
}

// ledger returns the ledger of the --tenant flag.
func (a *app) ledger(ctx context.Context) (*ledger.Ledger, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	return reg.Get(ctx, a.tenantID)
}

func (a *app) retryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if a.cfg.Ledger.RetryAttempts > 0 {
		p.Attempts = a.cfg.Ledger.RetryAttempts
	}
	return p
}

// write runs fn under the configured retry policy.
func (a *app) write(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, a.retryPolicy(), fn)
}

// close releases whatever registry opened. It is safe to call twice.
func (a *app) close() error {
	var errs []error
	if a.tenants != nil {
		errs = append(errs, a.tenants.Close())
		a.tenants = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, value)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// withLedger adapts a RunE that needs the tenant ledger.
func (a *app) withLedger(fn func(cmd *cobra.Command, args []string, l *ledger.Ledger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		l, err := a.ledger(cmd.Context())
		if err == nil {
			err = fn(cmd, args, l)
		}
		if err != nil {
			// cobra skips PersistentPostRunE when RunE fails.
			return errors.Join(err, a.close())
		}
		return nil
	}
}
