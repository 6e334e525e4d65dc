package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	sc "github.com/sksmith/go-spring-config"
	"github.com/spf13/viper"
)

const (
	AppName  = "Harvest Ledger"
	Revision = "1"

	remoteRetries = 5
)

var (
	// Build time arguments
	AppVersion  string
	Sha1Version string
	BuildTime   string
)

type StringConfig struct {
	Value       string `json:"value"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type BoolConfig struct {
	Value       bool   `json:"value"`
	Default     bool   `json:"default"`
	Description string `json:"description"`
}

type IntConfig struct {
	Value       int    `json:"value"`
	Default     int    `json:"default"`
	Description string `json:"description"`
}

type Config struct {
	AppName     StringConfig `json:"appName"`
	AppVersion  StringConfig `json:"appVersion"`
	Sha1Version StringConfig `json:"sha1Version"`
	BuildTime   StringConfig `json:"buildTime"`
	Profile     StringConfig `json:"profile"`
	Revision    StringConfig `json:"revision"`
	Port        StringConfig `json:"port"`
	Config      ConfigSource `json:"config"`
	Log         LogConfig    `json:"log"`
	Db          DbConfig     `json:"db"`
	RabbitMQ    QueueConfig  `json:"rabbitmq"`
	Ledger      LedgerConfig `json:"ledger"`
	Admin       AdminConfig  `json:"admin"`
}

type ConfigSource struct {
	Print       BoolConfig   `json:"print"`
	Source      StringConfig `json:"source"`
	Spring      SpringConfig `json:"spring"`
	Description string       `json:"description"`
}

type SpringConfig struct {
	Url         StringConfig `json:"url"`
	Branch      StringConfig `json:"branch"`
	User        StringConfig `json:"user"`
	Pass        StringConfig `json:"pass" sensitive:"Value,Default"`
	Description string       `json:"description"`
}

type LogConfig struct {
	Level       StringConfig `json:"level"`
	Structured  BoolConfig   `json:"structured"`
	Description string       `json:"description"`
}

type DbConfig struct {
	Name        StringConfig `json:"name"`
	Host        StringConfig `json:"host"`
	Port        StringConfig `json:"port"`
	Migrate     BoolConfig   `json:"migrate"`
	Clean       BoolConfig   `json:"clean"`
	InMemory    BoolConfig   `json:"inMemory"`
	User        StringConfig `json:"user"`
	Pass        StringConfig `json:"pass" sensitive:"Value,Default"`
	Pool        DbPoolConfig `json:"pool"`
	Description string       `json:"description"`
}

type DbPoolConfig struct {
	MinSize     IntConfig `json:"minPoolSize"`
	MaxSize     IntConfig `json:"maxPoolSize"`
	Description string    `json:"description"`
}

type QueueConfig struct {
	Host         StringConfig            `json:"host"`
	Port         StringConfig            `json:"port"`
	User         StringConfig            `json:"user"`
	Pass         StringConfig            `json:"pass" sensitive:"Value,Default"`
	Mock         BoolConfig              `json:"mock"`
	Stock        ExchangeConfig          `json:"stock"`
	Reservation  ExchangeConfig          `json:"reservation"`
	Registration RegistrationQueueConfig `json:"registration"`
	Description  string                  `json:"description"`
}

type ExchangeConfig struct {
	Exchange    StringConfig `json:"exchange"`
	Description string       `json:"description"`
}

type RegistrationQueueConfig struct {
	Queue       StringConfig   `json:"queue"`
	Dlt         ExchangeConfig `json:"dlt"`
	Description string         `json:"description"`
}

type LedgerConfig struct {
	MaxRetries                IntConfig  `json:"maxRetries"`
	AggregateSaleReducesTotal BoolConfig `json:"aggregateSaleReducesTotal"`
	BatchSaleReducesTotal     BoolConfig `json:"batchSaleReducesTotal"`
	StrictRelease             BoolConfig `json:"strictRelease"`
	ExpiringSoonDays          IntConfig  `json:"expiringSoonDays"`
	UserCacheSize             IntConfig  `json:"userCacheSize"`
	Description               string     `json:"description"`
}

type AdminConfig struct {
	User        StringConfig `json:"user"`
	Pass        StringConfig `json:"pass" sensitive:"Value,Default"`
	Description string       `json:"description"`
}

// LoadDefaults returns the configuration without consulting any file, environment variable or server.
func LoadDefaults() *Config {
	cfg := newConfig()
	v := viper.New()
	for _, s := range cfg.settings() {
		s.setting.apply(v, s.key)
	}
	return cfg
}

// Load reads the named yaml file from the working directory and overlays environment variables on it,
// for example DB_HOST for db.host. When config.source is spring the values are then pulled from a
// Spring Cloud Config server.
func Load(filename string) *Config {
	cfg := newConfig()

	v := viper.New()
	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("failed to read config file, using defaults")
	}

	for _, s := range cfg.settings() {
		s.setting.apply(v, s.key)
	}

	if cfg.Config.Source.Value == "spring" {
		if err := loadRemoteConfigs(cfg, v); err != nil {
			log.Fatal().Err(err).Msg("failed to load remote configurations")
		}
		for _, s := range cfg.settings() {
			s.setting.apply(v, s.key)
		}
	}

	return cfg
}

func loadRemoteConfigs(cfg *Config, v *viper.Viper) error {
	spring := cfg.Config.Spring

	log.Info().
		Str("url", spring.Url.Value).
		Str("branch", spring.Branch.Value).
		Str("profile", cfg.Profile.Value).
		Msg("loading remote configurations...")

	var remote *sc.Config
	var err error
	for tryCount := 1; tryCount <= remoteRetries; tryCount++ {
		remote, err = sc.LoadWithCreds(spring.Url.Value, cfg.AppName.Value, spring.Branch.Value,
			spring.User.Value, spring.Pass.Value, cfg.Profile.Value)
		if err == nil {
			break
		}
		log.Error().Err(err).Int("try", tryCount).Msg("failed to load configurations... retrying")
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return err
	}

	for k, val := range remote.Values {
		v.Set(k, val)
	}
	return nil
}

func (c *Config) Print() {
	if c.Config.Print.Value {
		log.Info().Interface("config", c).Msg("the following configurations have successfully loaded")
	}
}

type setting interface {
	apply(v *viper.Viper, key string)
}

func (s *StringConfig) apply(v *viper.Viper, key string) {
	v.SetDefault(key, s.Default)
	s.Value = v.GetString(key)
}

func (s *BoolConfig) apply(v *viper.Viper, key string) {
	v.SetDefault(key, s.Default)
	s.Value = v.GetBool(key)
}

func (s *IntConfig) apply(v *viper.Viper, key string) {
	v.SetDefault(key, s.Default)
	s.Value = v.GetInt(key)
}

type keyedSetting struct {
	key     string
	setting setting
}

func (c *Config) settings() []keyedSetting {
	return []keyedSetting{
		{"profile", &c.Profile},
		{"port", &c.Port},

		{"config.print", &c.Config.Print},
		{"config.source", &c.Config.Source},
		{"config.spring.url", &c.Config.Spring.Url},
		{"config.spring.branch", &c.Config.Spring.Branch},
		{"config.spring.user", &c.Config.Spring.User},
		{"config.spring.pass", &c.Config.Spring.Pass},

		{"log.level", &c.Log.Level},
		{"log.structured", &c.Log.Structured},

		{"db.name", &c.Db.Name},
		{"db.host", &c.Db.Host},
		{"db.port", &c.Db.Port},
		{"db.migrate", &c.Db.Migrate},
		{"db.clean", &c.Db.Clean},
		{"db.inMemory", &c.Db.InMemory},
		{"db.user", &c.Db.User},
		{"db.pass", &c.Db.Pass},
		{"db.pool.minSize", &c.Db.Pool.MinSize},
		{"db.pool.maxSize", &c.Db.Pool.MaxSize},

		{"rabbitmq.host", &c.RabbitMQ.Host},
		{"rabbitmq.port", &c.RabbitMQ.Port},
		{"rabbitmq.user", &c.RabbitMQ.User},
		{"rabbitmq.pass", &c.RabbitMQ.Pass},
		{"rabbitmq.mock", &c.RabbitMQ.Mock},
		{"rabbitmq.stock.exchange", &c.RabbitMQ.Stock.Exchange},
		{"rabbitmq.reservation.exchange", &c.RabbitMQ.Reservation.Exchange},
		{"rabbitmq.registration.queue", &c.RabbitMQ.Registration.Queue},
		{"rabbitmq.registration.dlt.exchange", &c.RabbitMQ.Registration.Dlt.Exchange},

		{"ledger.maxRetries", &c.Ledger.MaxRetries},
		{"ledger.aggregateSaleReducesTotal", &c.Ledger.AggregateSaleReducesTotal},
		{"ledger.batchSaleReducesTotal", &c.Ledger.BatchSaleReducesTotal},
		{"ledger.strictRelease", &c.Ledger.StrictRelease},
		{"ledger.expiringSoonDays", &c.Ledger.ExpiringSoonDays},
		{"ledger.userCacheSize", &c.Ledger.UserCacheSize},

		{"admin.user", &c.Admin.User},
		{"admin.pass", &c.Admin.Pass},
	}
}

func newConfig() *Config {
	c := &Config{}

	c.AppName = StringConfig{Value: AppName, Default: AppName,
		Description: "Name of the application in a human readable format. Example: Harvest Ledger"}
	c.AppVersion = StringConfig{Value: AppVersion,
		Description: "Semantic version of the application. Example: v1.2.3"}
	c.Sha1Version = StringConfig{Value: Sha1Version,
		Description: "Git sha1 hash of the application version."}
	c.BuildTime = StringConfig{Value: BuildTime,
		Description: "When this version of the application was compiled."}
	c.Profile = StringConfig{Default: "local",
		Description: "Running profile of the application, can assist with sensible defaults or change behavior. Examples: local, dev, prod"}
	c.Revision = StringConfig{Value: Revision, Default: Revision,
		Description: "A hard coded revision handy for quickly determining if local changes are running. Examples: 1, Two, 9999"}
	c.Port = StringConfig{Default: "8080",
		Description: "Port that the application will bind to on startup. Examples: 8080, 3000"}

	c.Config.Description = "Settings for where and how the application should get its configurations."
	c.Config.Print = BoolConfig{Default: false, Description: "Print configurations on startup."}
	c.Config.Source = StringConfig{Default: "local",
		Description: "Where the application should go for configurations. Examples: local, spring"}
	c.Config.Spring.Description = "Configuration settings for Spring Cloud Config. These are only used if config.source is spring."
	c.Config.Spring.Url = StringConfig{Description: "The url of the Spring Cloud Config server."}
	c.Config.Spring.Branch = StringConfig{Default: "main",
		Description: "The git branch to use to pull configurations from. Examples: main, master, development"}
	c.Config.Spring.User = StringConfig{Description: "User to use when connecting to the Spring Cloud Config server."}
	c.Config.Spring.Pass = StringConfig{Description: "Password to use when connecting to the Spring Cloud Config server."}

	c.Log.Description = "Settings for application logging."
	c.Log.Level = StringConfig{Default: "trace",
		Description: "The lowest level that the application should log at. Examples: info, warn, error."}
	c.Log.Structured = BoolConfig{Default: false,
		Description: "Whether the application should output structured (json) logging, or human friendly plain text."}

	c.Db.Description = "Database configurations."
	c.Db.Name = StringConfig{Default: "harvest-ledger-db", Description: "The name of the database to connect to."}
	c.Db.Host = StringConfig{Default: "localhost", Description: "Host of the database."}
	c.Db.Port = StringConfig{Default: "5432", Description: "Port of the database."}
	c.Db.Migrate = BoolConfig{Default: true,
		Description: "Whether or not database migrations should be executed on startup."}
	c.Db.Clean = BoolConfig{Default: false,
		Description: "WARNING: THIS WILL DELETE ALL DATA FROM THE DB. Used only during migration. If clean is true, all 'down' migrations are executed."}
	c.Db.InMemory = BoolConfig{Default: false,
		Description: "Whether or not the application should keep ledgers in memory instead of the database."}
	c.Db.User = StringConfig{Default: "postgres", Description: "User the application will use to connect to the database."}
	c.Db.Pass = StringConfig{Default: "postgres", Description: "Password the application will use for connecting to the database."}
	c.Db.Pool.Description = "Database connection pool configurations."
	c.Db.Pool.MinSize = IntConfig{Default: 1, Description: "The minimum size of the pool."}
	c.Db.Pool.MaxSize = IntConfig{Default: 4, Description: "The maximum size of the pool."}

	c.RabbitMQ.Description = "RabbitMQ configurations."
	c.RabbitMQ.Host = StringConfig{Default: "localhost", Description: "RabbitMQ's broker host."}
	c.RabbitMQ.Port = StringConfig{Default: "5672", Description: "RabbitMQ's broker host port."}
	c.RabbitMQ.User = StringConfig{Default: "guest", Description: "User the application will use to connect to RabbitMQ."}
	c.RabbitMQ.Pass = StringConfig{Default: "guest", Description: "Password the application will use to connect to RabbitMQ."}
	c.RabbitMQ.Mock = BoolConfig{Default: false,
		Description: "Whether or not the application should mock sending messages to RabbitMQ."}
	c.RabbitMQ.Stock.Description = "RabbitMQ settings for stock level updates."
	c.RabbitMQ.Stock.Exchange = StringConfig{Default: "stock.exchange",
		Description: "RabbitMQ exchange to use for posting ledger, stock and sale events."}
	c.RabbitMQ.Reservation.Description = "RabbitMQ settings for reservation updates."
	c.RabbitMQ.Reservation.Exchange = StringConfig{Default: "reservation.exchange",
		Description: "RabbitMQ exchange to use for posting reservation and release events."}
	c.RabbitMQ.Registration.Description = "RabbitMQ settings for ledger registrations coming from the product catalog."
	c.RabbitMQ.Registration.Queue = StringConfig{Default: "ledger.registration.queue",
		Description: "Queue used for listening to new ledger registrations."}
	c.RabbitMQ.Registration.Dlt.Description = "Configurations for the registration dead letter topic, where messages that fail to be read from the queue are written."
	c.RabbitMQ.Registration.Dlt.Exchange = StringConfig{Default: "ledger.registration.dlt.exchange",
		Description: "Exchange used for posting messages to the dead letter topic."}

	c.Ledger.Description = "Quantity ledger behavior."
	c.Ledger.MaxRetries = IntConfig{Default: 3,
		Description: "How many times a ledger change that lost a race with another writer is retried."}
	c.Ledger.AggregateSaleReducesTotal = BoolConfig{Default: true,
		Description: "Whether completing a sale on a product ledger also lowers its total quantity."}
	c.Ledger.BatchSaleReducesTotal = BoolConfig{Default: false,
		Description: "Whether completing a sale on a batch ledger also lowers its total quantity."}
	c.Ledger.StrictRelease = BoolConfig{Default: false,
		Description: "Reject releases larger than the reserved quantity instead of releasing what is reserved."}
	c.Ledger.ExpiringSoonDays = IntConfig{Default: 7,
		Description: "Default window in days of the expiring soon check in the levels report. Batch status always uses a 7 day window."}
	c.Ledger.UserCacheSize = IntConfig{Default: 128,
		Description: "Number of authenticated users kept in memory."}

	c.Admin.Description = "Administrator created on startup when it does not exist yet."
	c.Admin.User = StringConfig{Default: "admin", Description: "Username of the bootstrap administrator."}
	c.Admin.Pass = StringConfig{Description: "Password of the bootstrap administrator. No administrator is created when empty."}

	return c
}
