package persistence

import (
	"fmt"
	"time"

	"github.com/school/backend/internal/infrastructure/config"
	"github.com/school/backend/internal/infrastructure/persistence/models"
	"github.com/school/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// Option configures how a Database is opened
type Option func(*options)

type options struct {
	logger      logger.Interface
	callbacks   []func(*gorm.DB) error
	tenantGuard bool
	autoMigrate bool
	nowFunc     func() time.Time
}

// WithLogger sets the GORM logger, typically the zap adapter
func WithLogger(l logger.Interface) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCallbacks registers plugins such as the tracing plugin after the connection opens
func WithCallbacks(fns ...func(*gorm.DB) error) Option {
	return func(o *options) {
		o.callbacks = append(o.callbacks, fns...)
	}
}

// WithoutTenantGuard skips the tenant guard callbacks. Only migrations need this.
func WithoutTenantGuard() Option {
	return func(o *options) {
		o.tenantGuard = false
	}
}

// WithAutoMigrate creates the fee ledger tables before the guard is installed.
// Production schemas come from the SQL migrations; this serves tests and local runs.
func WithAutoMigrate() Option {
	return func(o *options) {
		o.autoMigrate = true
	}
}

// WithNowFunc overrides the timestamp source GORM uses for created_at/updated_at
func WithNowFunc(fn func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = fn
	}
}

// NewDatabase creates a new PostgreSQL connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	d, err := Open(postgres.Open(cfg.DSN()), opts...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return d, nil
}

// Open opens a database on any dialector. Unique violations are translated to
// gorm.ErrDuplicatedKey and the tenant guard is installed unless disabled.
func Open(dialector gorm.Dialector, opts ...Option) (*Database, error) {
	o := &options{
		logger:      logger.Default.LogMode(logger.Silent),
		tenantGuard: true,
		nowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		NowFunc:                o.nowFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, register := range o.callbacks {
		if err := register(db); err != nil {
			return nil, fmt.Errorf("failed to register database plugin: %w", err)
		}
	}

	d := &Database{DB: db}
	if o.autoMigrate {
		if err := d.AutoMigrateFeeLedger(); err != nil {
			return nil, err
		}
	}
	if o.tenantGuard {
		if err := tenant.EnableGuard(db); err != nil {
			return nil, fmt.Errorf("failed to register tenant guard: %w", err)
		}
	}
	return d, nil
}

// AutoMigrateFeeLedger creates or updates the fee ledger tables from the models
func (d *Database) AutoMigrateFeeLedger() error {
	if err := d.DB.AutoMigrate(models.FeeLedgerModels()...); err != nil {
		return fmt.Errorf("failed to migrate fee ledger tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxIdleTimeClosed  int64
	MaxLifetimeClosed  int64
}
