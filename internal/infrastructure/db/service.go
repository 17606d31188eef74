package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arkade-os/swapd/internal/core/ports"
	badgerdb "github.com/arkade-os/swapd/internal/infrastructure/db/badger"
	pgdb "github.com/arkade-os/swapd/internal/infrastructure/db/postgres"
	redisdb "github.com/arkade-os/swapd/internal/infrastructure/db/redis"
	sqlitedb "github.com/arkade-os/swapd/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed sqlite/migration/*
var migrations embed.FS

//go:embed postgres/migration/*
var pgMigration embed.FS

const sqliteDbFile = "sqlite.db"

var storeTypes = map[string]func(...interface{}) (ports.Store, error){
	"badger":   badgerdb.NewStore,
	"redis":    redisdb.NewStore,
	"sqlite":   sqlitedb.NewStore,
	"postgres": pgdb.NewStore,
}

// ServiceConfig selects the ledger store backend. StoreConfig depends on
// StoreType:
//   - badger: base directory (string), badger.Logger (or nil)
//   - redis: url (string), number of retries (int)
//   - sqlite: base directory (string)
//   - postgres: dsn (string), auto create (bool)
type ServiceConfig struct {
	StoreType   string
	StoreConfig []interface{}

	// TTL is the lifetime of a record since it was last written or
	// touched. Zero keeps records forever.
	TTL time.Duration
	// PurgeInterval is how often the sql stores drop expired rows.
	PurgeInterval time.Duration
	// RedisTxNumOfRetries bounds the retries of a redis transaction.
	RedisTxNumOfRetries int
}

func NewService(config ServiceConfig) (ports.Store, error) {
	factory, ok := storeTypes[config.StoreType]
	if !ok {
		return nil, fmt.Errorf("invalid store type: %s", config.StoreType)
	}

	switch config.StoreType {
	case "badger":
		if len(config.StoreConfig) != 2 {
			return nil, fmt.Errorf("invalid store config for badger")
		}
		store, err := factory(config.StoreConfig[0], config.StoreConfig[1], config.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger store: %s", err)
		}
		return store, nil

	case "redis":
		if len(config.StoreConfig) != 1 {
			return nil, fmt.Errorf("invalid store config for redis")
		}
		numOfRetries := config.RedisTxNumOfRetries
		if numOfRetries <= 0 {
			numOfRetries = 10
		}
		store, err := factory(config.StoreConfig[0], config.TTL, numOfRetries)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger store: %s", err)
		}
		return store, nil

	case "postgres":
		if len(config.StoreConfig) != 2 {
			return nil, fmt.Errorf("invalid store config for postgres")
		}
		dsn, ok := config.StoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid DSN for postgres")
		}
		autoCreate, ok := config.StoreConfig[1].(bool)
		if !ok {
			return nil, fmt.Errorf("invalid autocreate flag for postgres")
		}

		db, err := pgdb.OpenDb(dsn, autoCreate)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %s", err)
		}

		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}
		source, err := iofs.New(pgMigration, "postgres/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed postgres migrations: %s", err)
		}
		m, err := migrate.NewWithInstance("iofs", source, "postgres", pgDriver)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres migration instance: %s", err)
		}
		if err := runMigrations(m); err != nil {
			return nil, fmt.Errorf("failed to run postgres migrations: %s", err)
		}

		return openSQLStore(factory, db, config)

	case "sqlite":
		if len(config.StoreConfig) != 1 {
			return nil, fmt.Errorf("invalid store config for sqlite")
		}
		baseDir, ok := config.StoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}
		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}
		m, err := migrate.NewWithInstance("iofs", source, "swapd", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}
		if err := runMigrations(m); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		return openSQLStore(factory, db, config)
	}

	return nil, fmt.Errorf("unknown store type: %s", config.StoreType)
}

func runMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Debugf("ledger store schema at version %d (dirty: %t)", version, dirty)
	}
	return nil
}

func openSQLStore(
	factory func(...interface{}) (ports.Store, error), db *sql.DB, config ServiceConfig,
) (ports.Store, error) {
	purgeInterval := config.PurgeInterval
	if purgeInterval <= 0 {
		purgeInterval = time.Hour
	}
	store, err := factory(db, config.TTL, purgeInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %s", err)
	}
	return store, nil
}
