package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/application"
	"github.com/ephesafe/ephesafed/internal/core/ports"
	ledgercustody "github.com/ephesafe/ephesafed/internal/infrastructure/custody/ledger"
	"github.com/ephesafe/ephesafed/internal/infrastructure/db"
	inmemorylivestore "github.com/ephesafe/ephesafed/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/ephesafe/ephesafed/internal/infrastructure/live-store/redis"
	timescheduler "github.com/ephesafe/ephesafed/internal/infrastructure/scheduler/gocron"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const maxBasisPoints = 10000

var (
	supportedEventDbs = supportedType{
		"badger":  {},
		"channel": {},
	}
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
)

type Config struct {
	Datadir  string
	Port     uint32
	LogLevel int

	DbType              string
	EventDbType         string
	DbDir               string
	EventDbDir          string
	LiveStoreType       string
	RedisUrl            string
	RedisTxNumOfRetries int
	SchedulerType       string

	AdminAddress     string
	DestroyRewardBps uint64
	WatchInterval    int64
	StaleUnlockAfter int64
	WithFaucet       bool

	repo      ports.RepoManager
	svc       application.Service
	adminSvc  application.AdminService
	custody   ports.CustodyService
	scheduler ports.SchedulerService
	liveStore ports.LiveStore
}

func (c *Config) String() string {
	buf, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(buf)
}

var (
	defaultDatadir             = appDataDir()
	DefaultPort                = 7070
	defaultLogLevel            = 4
	defaultDbType              = "badger"
	defaultEventDbType         = "badger"
	defaultSchedulerType       = "gocron"
	defaultLiveStoreType       = "inmemory"
	defaultRedisTxNumOfRetries = 10
	defaultDestroyRewardBps    = 50
	defaultWatchInterval       = 60    // seconds
	defaultStaleUnlockAfter    = 86400 // 24 hours
)

// env returns a list of strings prefixed with `EPHESAFED_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("EPHESAFED_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	Port = &cli.UintFlag{
		Usage: "Port to listen on",
		Name:  "port", EnvVars: env("PORT"),
		Value: uint(DefaultPort),
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: defaultLogLevel,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (sqlite, badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	EventDbType = &cli.StringFlag{
		Usage: "Event database type (badger, channel)",
		Name:  "event-db-type", EnvVars: env("EVENT_DB_TYPE"),
		Value: defaultEventDbType,
	}

	LiveStoreType = &cli.StringFlag{
		Usage: "Cache service type (redis, inmemory)",
		Name:  "live-store-type", EnvVars: env("LIVE_STORE_TYPE"),
		Value: defaultLiveStoreType,
	}

	RedisUrl = &cli.StringFlag{
		Usage: "Redis db connection url if EPHESAFED_LIVE_STORE_TYPE is set to redis",
		Name:  "redis-url", EnvVars: env("REDIS_URL"),
	}

	RedisTxNumOfRetries = &cli.IntFlag{
		Usage: "Maximum number of attempts to acquire a Redis safe lock",
		Name:  "redis-num-of-retries", EnvVars: env("REDIS_NUM_OF_RETRIES"),
		Value: defaultRedisTxNumOfRetries,
	}

	SchedulerType = &cli.StringFlag{
		Usage: "Scheduler type (gocron)",
		Name:  "scheduler-type", EnvVars: env("SCHEDULER_TYPE"),
		Value: defaultSchedulerType,
	}

	AdminAddress = &cli.StringFlag{
		Usage: "Address granted every registry role on first run",
		Name:  "admin-address", EnvVars: env("ADMIN_ADDRESS"),
	}

	DestroyRewardBps = &cli.Uint64Flag{
		Usage: "Share of a destroyed safe paid to the caller, in basis points",
		Name:  "destroy-reward-bps", EnvVars: env("DESTROY_REWARD_BPS"),
		Value: uint64(defaultDestroyRewardBps),
	}

	// TODO: Make this a cli.DurationFlag.
	WatchInterval = &cli.Int64Flag{
		Usage: "Interval of the safe watcher in seconds, 0 disables it",
		Name:  "watch-interval", EnvVars: env("WATCH_INTERVAL"),
		Value: int64(defaultWatchInterval),
	}

	// TODO: Make this a cli.DurationFlag.
	StaleUnlockAfter = &cli.Int64Flag{
		Usage: "Age in seconds after which a pending unlock round is reported as stale",
		Name:  "stale-unlock-after", EnvVars: env("STALE_UNLOCK_AFTER"),
		Value: int64(defaultStaleUnlockAfter),
		DefaultText: fmt.Sprintf("%d (~%0.f hours)", defaultStaleUnlockAfter,
			(time.Duration(defaultStaleUnlockAfter) * time.Second).Hours()),
	}

	WithFaucet = &cli.BoolFlag{
		Usage: "Expose the dev faucet endpoints of the custody ledger",
		Name:  "with-faucet", EnvVars: env("WITH_FAUCET"),
		Value: false,
	}
)

var Flags = []cli.Flag{
	Datadir,
	Port,
	LogLevel,
	DbType,
	EventDbType,
	LiveStoreType,
	RedisUrl,
	RedisTxNumOfRetries,
	SchedulerType,
	AdminAddress,
	DestroyRewardBps,
	WatchInterval,
	StaleUnlockAfter,
	WithFaucet,
}

func LoadConfig(c *cli.Context) (*Config, error) {
	if err := initDatadir(c); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(c.String(Datadir.Name), "db")

	var redisUrl string
	if c.String(LiveStoreType.Name) == "redis" {
		redisUrl = c.String(RedisUrl.Name)
		if redisUrl == "" {
			return nil, fmt.Errorf("live store type set to 'redis' but redis url is missing")
		}
	}

	return &Config{
		Datadir:             c.String(Datadir.Name),
		Port:                uint32(c.Uint(Port.Name)),
		LogLevel:            c.Int(LogLevel.Name),
		DbType:              c.String(DbType.Name),
		EventDbType:         c.String(EventDbType.Name),
		DbDir:               dbPath,
		EventDbDir:          dbPath,
		LiveStoreType:       c.String(LiveStoreType.Name),
		RedisUrl:            redisUrl,
		RedisTxNumOfRetries: c.Int(RedisTxNumOfRetries.Name),
		SchedulerType:       c.String(SchedulerType.Name),
		AdminAddress:        c.String(AdminAddress.Name),
		DestroyRewardBps:    c.Uint64(DestroyRewardBps.Name),
		WatchInterval:       c.Int64(WatchInterval.Name),
		StaleUnlockAfter:    c.Int64(StaleUnlockAfter.Name),
		WithFaucet:          c.Bool(WithFaucet.Name),
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

func appDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ephesafed"
	}
	return filepath.Join(home, ".ephesafed")
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf(
			"event db type not supported, please select one of: %s",
			supportedEventDbs,
		)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf(
			"scheduler type not supported, please select one of: %s",
			supportedSchedulers,
		)
	}
	if len(c.LiveStoreType) > 0 && !supportedLiveStores.supports(c.LiveStoreType) {
		return fmt.Errorf(
			"live store type not supported, please select one of: %s",
			supportedLiveStores,
		)
	}
	if c.AdminAddress == "" {
		return fmt.Errorf("missing admin address")
	}
	if !common.IsHexAddress(c.AdminAddress) {
		return fmt.Errorf("invalid admin address")
	}
	if c.DestroyRewardBps > maxBasisPoints {
		return fmt.Errorf("destroy reward must be at most %d basis points", maxBasisPoints)
	}
	if c.WatchInterval < 0 {
		return fmt.Errorf("invalid watch interval")
	}
	if c.StaleUnlockAfter < 0 {
		return fmt.Errorf("invalid stale unlock threshold")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.custodyService(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.adminService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) AdminService() application.AdminService {
	return c.adminSvc
}

func (c *Config) CustodyService() ports.CustodyService {
	return c.custody
}

func (c *Config) RepoManager() ports.RepoManager {
	return c.repo
}

func (c *Config) repoManager() error {
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	case "channel":
		eventStoreConfig = []interface{}{}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) custodyService() error {
	c.custody = ledgercustody.NewCustodyService()
	return nil
}

func (c *Config) liveStoreService() error {
	var liveStoreSvc ports.LiveStore
	switch c.LiveStoreType {
	case "inmemory":
		liveStoreSvc = inmemorylivestore.NewLiveStore()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		liveStoreSvc = redislivestore.NewLiveStore(rdb, c.RedisTxNumOfRetries)
	default:
		return fmt.Errorf("unknown liveStore type")
	}

	c.liveStore = liveStoreSvc
	return nil
}

func (c *Config) schedulerService() error {
	switch c.SchedulerType {
	case "gocron":
		c.scheduler = timescheduler.NewScheduler()
	default:
		return fmt.Errorf("unknown scheduler type")
	}
	return nil
}

func (c *Config) adminService() error {
	adminSvc, err := application.NewAdminService(
		c.repo, common.HexToAddress(c.AdminAddress),
	)
	if err != nil {
		return err
	}

	c.adminSvc = adminSvc
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		c.repo, c.custody, c.liveStore, c.scheduler,
		c.DestroyRewardBps,
		time.Duration(c.WatchInterval)*time.Second,
		time.Duration(c.StaleUnlockAfter)*time.Second,
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
