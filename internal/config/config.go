package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arkade-os/swapd/internal/core/application"
	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	"github.com/arkade-os/swapd/internal/infrastructure/db"
	"github.com/arkade-os/swapd/internal/infrastructure/events"
	staticrouter "github.com/arkade-os/swapd/internal/infrastructure/router/static"
	"github.com/arkade-os/swapd/internal/infrastructure/token"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	supportedDbs = supportedType{
		"badger":   {},
		"sqlite":   {},
		"postgres": {},
		"redis":    {},
	}
	supportedRouters = supportedType{
		"static": {},
	}
)

type Config struct {
	Datadir        string
	Port           uint32
	LogLevel       int
	AllowedOrigins []string
	RatePerMinute  int
	RequestTimeout time.Duration
	EnablePprof    bool

	DbType              string
	DbDir               string
	DbUrl               string
	DbAutoCreate        bool
	RedisTxNumOfRetries int
	StoreTTL            time.Duration
	PurgeInterval       time.Duration

	CustodyAccount   string
	RouterType       string
	RouterAccount    string
	PoolsFile        string
	RejectZeroOutput bool

	OtelCollectorEndpoint string
	OtelPushInterval      int64

	store   ports.Store
	ledger  ports.TokenLedger
	routers []ports.SwapRouter
	bus     *events.Bus
	svc     application.Service
}

func (c *Config) String() string {
	clone := *c
	// urls may embed credentials
	if clone.DbUrl != "" {
		clone.DbUrl = "••••••"
	}
	buf, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(buf)
}

var (
	defaultDatadir          = appDataDir("swapd")
	DefaultPort             = 7080
	defaultLogLevel         = 4
	defaultDbType           = "badger"
	defaultRedisRetries     = 10
	defaultStoreTTL         = 0
	defaultPurgeInterval    = 3600
	defaultCustodyAccount   = "swapd:custody"
	defaultRouterType       = "static"
	defaultRouterAccount    = "swapd:router"
	defaultRejectZeroOutput = true
	defaultRatePerMinute    = 600
	defaultRequestTimeout   = 30
	defaultOtelPushInterval = 10
	defaultEnablePprof      = false
)

func env(name string) []string {
	return []string{"SWAPD_" + name}
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}
	Port = &cli.UintFlag{
		Usage: "Port (public) to listen on",
		Name:  "port", EnvVars: env("PORT"),
		Value: uint(DefaultPort),
	}
	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}
	DbType = &cli.StringFlag{
		Usage: "Ledger store type (badger, sqlite, postgres, redis)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}
	DbUrl = &cli.StringFlag{
		Usage: "Postgres or redis connection url if db type is postgres or redis",
		Name:  "db-url", EnvVars: env("DB_URL"),
	}
	DbAutoCreate = &cli.BoolFlag{
		Usage: "Create the postgres database if it does not exist",
		Name:  "db-auto-create", EnvVars: env("DB_AUTO_CREATE"),
	}
	RedisTxNumOfRetries = &cli.IntFlag{
		Usage: "Maximum number of retries for redis write operations in case of conflicts",
		Name:  "redis-num-of-retries", EnvVars: env("REDIS_NUM_OF_RETRIES"),
		Value: defaultRedisRetries,
	}
	StoreTTL = &cli.Int64Flag{
		Usage: "Lifetime in seconds of a ledger record since it was last written",
		Name:  "store-ttl", EnvVars: env("STORE_TTL"),
		Value:       int64(defaultStoreTTL),
		DefaultText: "0 disabled",
	}
	PurgeInterval = &cli.Int64Flag{
		Usage: "Interval in seconds between purges of expired records (sqlite, postgres)",
		Name:  "purge-interval", EnvVars: env("PURGE_INTERVAL"),
		Value: int64(defaultPurgeInterval),
	}
	CustodyAccount = &cli.StringFlag{
		Usage: "Account holding deposits until they are settled",
		Name:  "custody-account", EnvVars: env("CUSTODY_ACCOUNT"),
		Value: defaultCustodyAccount,
	}
	RouterType = &cli.StringFlag{
		Usage: "Swap router type",
		Name:  "router-type", EnvVars: env("ROUTER_TYPE"),
		Value: defaultRouterType,
	}
	RouterAccount = &cli.StringFlag{
		Usage: "Account of the swap router, to be selected with the admin swap-router command",
		Name:  "router-account", EnvVars: env("ROUTER_ACCOUNT"),
		Value: defaultRouterAccount,
	}
	PoolsFile = &cli.StringFlag{
		Usage: "TOML file with the pools to seed into the static router",
		Name:  "pools-file", EnvVars: env("POOLS_FILE"),
	}
	RejectZeroOutput = &cli.BoolFlag{
		Usage: "Reject settlements whose output amount is zero",
		Name:  "reject-zero-output", EnvVars: env("REJECT_ZERO_OUTPUT"),
		Value: defaultRejectZeroOutput,
	}
	AllowedOrigins = &cli.StringSliceFlag{
		Usage: "Origins allowed by CORS, all if empty",
		Name:  "cors-allowed-origins", EnvVars: env("CORS_ALLOWED_ORIGINS"),
	}
	RatePerMinute = &cli.IntFlag{
		Usage: "Max requests per minute per client ip on the /v1 api",
		Name:  "rate-limit", EnvVars: env("RATE_LIMIT"),
		Value:       defaultRatePerMinute,
		DefaultText: "0 disabled",
	}
	RequestTimeout = &cli.IntFlag{
		Usage: "Request timeout in seconds",
		Name:  "request-timeout", EnvVars: env("REQUEST_TIMEOUT"),
		Value: defaultRequestTimeout,
	}
	OtelCollectorEndpoint = &cli.StringFlag{
		Usage: "OpenTelemetry collector endpoint",
		Name:  "collector-endpoint", EnvVars: env("COLLECTOR_ENDPOINT"),
	}
	OtelPushInterval = &cli.IntFlag{
		Usage: "OpenTelemetry push interval in seconds",
		Name:  "otel-push-interval", EnvVars: env("OTEL_PUSH_INTERVAL"),
		Value: defaultOtelPushInterval,
	}
	EnablePprof = &cli.BoolFlag{
		Usage: "Expose pprof handlers under /debug",
		Name:  "enable-pprof", EnvVars: env("ENABLE_PPROF"),
		Value: defaultEnablePprof,
	}
)

var Flags = []cli.Flag{
	Datadir,
	Port,
	LogLevel,
	DbType,
	DbUrl,
	DbAutoCreate,
	RedisTxNumOfRetries,
	StoreTTL,
	PurgeInterval,
	CustodyAccount,
	RouterType,
	RouterAccount,
	PoolsFile,
	RejectZeroOutput,
	AllowedOrigins,
	RatePerMinute,
	RequestTimeout,
	OtelCollectorEndpoint,
	OtelPushInterval,
	EnablePprof,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	var dbUrl string
	switch c.String(DbType.Name) {
	case "postgres", "redis":
		dbUrl = c.String(DbUrl.Name)
		if dbUrl == "" {
			return nil, fmt.Errorf(
				"db type set to '%s' but db url is missing", c.String(DbType.Name),
			)
		}
	}

	return &Config{
		Datadir:               c.String(Datadir.Name),
		Port:                  uint32(c.Uint(Port.Name)),
		LogLevel:              c.Int(LogLevel.Name),
		AllowedOrigins:        c.StringSlice(AllowedOrigins.Name),
		RatePerMinute:         c.Int(RatePerMinute.Name),
		RequestTimeout:        time.Duration(c.Int(RequestTimeout.Name)) * time.Second,
		EnablePprof:           c.Bool(EnablePprof.Name),
		DbType:                c.String(DbType.Name),
		DbDir:                 filepath.Join(c.String(Datadir.Name), "db"),
		DbUrl:                 dbUrl,
		DbAutoCreate:          c.Bool(DbAutoCreate.Name),
		RedisTxNumOfRetries:   c.Int(RedisTxNumOfRetries.Name),
		StoreTTL:              time.Duration(c.Int64(StoreTTL.Name)) * time.Second,
		PurgeInterval:         time.Duration(c.Int64(PurgeInterval.Name)) * time.Second,
		CustodyAccount:        c.String(CustodyAccount.Name),
		RouterType:            c.String(RouterType.Name),
		RouterAccount:         c.String(RouterAccount.Name),
		PoolsFile:             c.String(PoolsFile.Name),
		RejectZeroOutput:      c.Bool(RejectZeroOutput.Name),
		OtelCollectorEndpoint: c.String(OtelCollectorEndpoint.Name),
		OtelPushInterval:      c.Int64(OtelPushInterval.Name),
	}, nil
}

func initDatadir(c *cli.Context) error {
	datadir := c.String(Datadir.Name)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0o755)
	}
	return nil
}

func appDataDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + name
	}
	return filepath.Join(home, "."+name)
}

func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedRouters.supports(c.RouterType) {
		return fmt.Errorf(
			"router type not supported, please select one of: %s", supportedRouters,
		)
	}
	if (c.DbType == "postgres" || c.DbType == "redis") && c.DbUrl == "" {
		return fmt.Errorf("missing db url")
	}
	if c.StoreTTL < 0 {
		return fmt.Errorf("store ttl must not be negative")
	}
	if c.PurgeInterval < 0 {
		return fmt.Errorf("purge interval must not be negative")
	}
	if strings.TrimSpace(c.CustodyAccount) == "" {
		return fmt.Errorf("missing custody account")
	}
	if strings.TrimSpace(c.RouterAccount) == "" {
		return fmt.Errorf("missing router account")
	}
	if c.RouterAccount == c.CustodyAccount {
		return fmt.Errorf("router and custody accounts must differ")
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.OtelPushInterval <= 0 && c.OtelCollectorEndpoint != "" {
		return fmt.Errorf("otel push interval must be positive")
	}

	if err := c.storeService(); err != nil {
		return err
	}
	if err := c.routerService(); err != nil {
		return err
	}
	return c.appService()
}

func (c *Config) Store() ports.Store {
	return c.store
}

func (c *Config) EventBus() *events.Bus {
	if c.bus == nil {
		c.bus = events.NewBus()
	}
	return c.bus
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

// Close releases the store and the event bus, if they were built.
func (c *Config) Close() {
	if c.bus != nil {
		c.bus.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

func (c *Config) storeService() error {
	if c.store != nil {
		return nil
	}

	var storeConfig []interface{}
	switch c.DbType {
	case "badger":
		storeConfig = []interface{}{c.DbDir, log.New()}
	case "sqlite":
		if err := makeDirectoryIfNotExists(c.DbDir); err != nil {
			return fmt.Errorf("failed to create db dir: %s", err)
		}
		storeConfig = []interface{}{c.DbDir}
	case "postgres":
		storeConfig = []interface{}{c.DbUrl, c.DbAutoCreate}
	case "redis":
		storeConfig = []interface{}{c.DbUrl}
	default:
		return fmt.Errorf("unknown db type")
	}

	store, err := db.NewService(db.ServiceConfig{
		StoreType:           c.DbType,
		StoreConfig:         storeConfig,
		TTL:                 c.StoreTTL,
		PurgeInterval:       c.PurgeInterval,
		RedisTxNumOfRetries: c.RedisTxNumOfRetries,
	})
	if err != nil {
		return err
	}

	c.store = store
	c.ledger = token.NewLedger()
	return nil
}

func (c *Config) routerService() error {
	if c.routers != nil {
		return nil
	}
	if c.store == nil {
		return fmt.Errorf("store not set")
	}

	switch c.RouterType {
	case "static":
		if c.PoolsFile != "" {
			pools, err := staticrouter.LoadPools(c.PoolsFile)
			if err != nil {
				return err
			}
			if err := staticrouter.Seed(
				context.Background(), c.store, c.ledger, pools,
			); err != nil {
				return fmt.Errorf("failed to seed pools: %s", err)
			}
		}
		c.routers = []ports.SwapRouter{
			staticrouter.NewRouter(domain.AccountId(c.RouterAccount), c.ledger),
		}
	default:
		return fmt.Errorf("unknown router type")
	}
	return nil
}

func (c *Config) appService() error {
	if c.svc != nil {
		return nil
	}
	if err := c.storeService(); err != nil {
		return err
	}
	if err := c.routerService(); err != nil {
		return err
	}

	svc, err := application.NewService(
		c.store, c.ledger, c.routers, c.EventBus(), application.Config{
			CustodyAccount:   domain.AccountId(c.CustodyAccount),
			RejectZeroOutput: c.RejectZeroOutput,
		},
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
