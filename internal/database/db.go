package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// ErrConnectionFailed wraps every failure to open or reach the database.
// The provider never retries, so once returned it is returned for the
// lifetime of the process.
var ErrConnectionFailed = errors.New("database connection failed")

// Options selects the engine and the connection parameters.
type Options struct {
	Driver  string // "mysql" or "sqlite"
	User    string
	Pass    string
	Host    string
	Port    string
	Name    string
	Path    string // sqlite file path
	Migrate bool   // create the schema on open (always true for sqlite)
}

// DB is the shared handle: the pool plus the dialect of the engine behind it.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Dialect returns the SQL dialect of the underlying engine.
func (db *DB) Dialect() Dialect { return db.dialect }

// Open connects to the configured engine and verifies the connection.
func Open(ctx context.Context, opts Options) (*DB, error) {
	switch opts.Driver {
	case "", "mysql":
		return openMySQL(ctx, opts)
	case "sqlite":
		return openSQLite(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
}

func openMySQL(ctx context.Context, opts Options) (*DB, error) {
	auth := opts.User
	if opts.Pass != "" {
		auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, opts.Host, opts.Port, opts.Name)

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	db := &DB{DB: sqlDB, dialect: mysqlDialect{}}
	if opts.Migrate {
		if err := db.Migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate mysql: %w", err)
		}
	}
	return db, nil
}

// Provider hands out the single shared connection.  The first Get opens it;
// every later Get returns the same handle or the same failure.
type Provider struct {
	opts   Options
	logger *slog.Logger

	once sync.Once
	db   *DB
	err  error
}

// NewProvider returns a provider that connects lazily with opts.
func NewProvider(opts Options, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{opts: opts, logger: logger}
}

// Static wraps an already open handle, mostly for tests and tools.
func Static(db *DB) *Provider {
	p := &Provider{logger: slog.Default(), db: db}
	p.once.Do(func() {})
	return p
}

// Get returns the shared handle.  Cancellation of the first caller's context
// does not poison the memoized result; only the connect timeout applies.
func (p *Provider) Get(ctx context.Context) (*DB, error) {
	p.once.Do(func() {
		db, err := Open(context.WithoutCancel(ctx), p.opts)
		if err != nil {
			p.logger.Error("database connect failed", slog.String("driver", p.opts.Driver), slog.Any("error", err))
			p.err = fmt.Errorf("%w: %v", ErrConnectionFailed, err)
			return
		}
		p.logger.Info("database connected", slog.String("driver", db.dialect.Name()))
		p.db = db
	})
	return p.db, p.err
}

// Close closes the handle if one was opened.
func (p *Provider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
