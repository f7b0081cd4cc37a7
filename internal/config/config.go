// Package config loads service and training settings from a YAML file,
// OJT_* environment variables, an optional .env file and command-line flags.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jrmsu/ojtinsight/ensemble"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. OJT_SERVER_PORT.
const EnvPrefix = "OJT"

// Config is the full application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Models   ModelsConfig   `mapstructure:"models"`
	Store    StoreConfig    `mapstructure:"store"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Ensemble EnsembleConfig `mapstructure:"ensemble"`
	Training TrainingConfig `mapstructure:"training"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type ModelsConfig struct {
	Dir string `mapstructure:"dir"`
}

type StoreConfig struct {
	// Path of the bbolt file holding prediction history. Empty disables
	// history.
	Path string `mapstructure:"path"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EnsembleConfig struct {
	LRWeight    float64 `mapstructure:"lr_weight"`
	RFWeight    float64 `mapstructure:"rf_weight"`
	NBWeight    float64 `mapstructure:"nb_weight"`
	NEstimators int     `mapstructure:"n_estimators"`
}

// Weights returns the blend weights.
func (c EnsembleConfig) Weights() ensemble.Weights {
	return ensemble.Weights{LR: c.LRWeight, RF: c.RFWeight, NB: c.NBWeight}
}

type TrainingConfig struct {
	Data           string  `mapstructure:"data"`
	PlotsDir       string  `mapstructure:"plots_dir"`
	TestSize       float64 `mapstructure:"test_size"`
	Seed           int64   `mapstructure:"seed"`
	SortedOrdinals bool    `mapstructure:"sorted_ordinals"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type loadOptions struct {
	flags    *pflag.FlagSet
	bindings map[string]string
	dotenv   string
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithFlags binds command-line flags to config keys. bindings maps a config
// key such as "models.dir" to a flag name such as "models-dir". Only flags
// set on the command line override the file and the environment.
func WithFlags(fs *pflag.FlagSet, bindings map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.flags = fs
		o.bindings = bindings
	}
}

// WithDotEnv reads environment variables from path before loading. A missing
// file is ignored.
func WithDotEnv(path string) LoadOption {
	return func(o *loadOptions) {
		o.dotenv = path
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ojt-insight")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("models.dir", "models")
	v.SetDefault("store.path", "data/predictions.db")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	d := ensemble.DefaultWeights
	v.SetDefault("ensemble.lr_weight", d.LR)
	v.SetDefault("ensemble.rf_weight", d.RF)
	v.SetDefault("ensemble.nb_weight", d.NB)
	v.SetDefault("ensemble.n_estimators", 100)

	v.SetDefault("training.data", "data/ojt_performance.csv")
	v.SetDefault("training.plots_dir", "plots")
	v.SetDefault("training.test_size", 0.2)
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.sorted_ordinals", false)
}

// Load reads configuration. With an empty path, config.yaml is searched in
// . and ./config and its absence is not an error.
func Load(configPath string, opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if o.dotenv != "" {
		if err := godotenv.Load(o.dotenv); err != nil && !os.IsNotExist(err) {
			return nil, ojtErrors.Wrapf(err, "failed to load %s", o.dotenv)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "OJT_SERVER_PORT", "PORT")
	_ = v.BindEnv("models.dir", "OJT_MODELS_DIR")
	_ = v.BindEnv("store.path", "OJT_STORE_PATH")
	_ = v.BindEnv("logger.level", "OJT_LOGGER_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("app.environment", "OJT_APP_ENVIRONMENT")

	if o.flags != nil {
		for key, name := range o.bindings {
			f := o.flags.Lookup(name)
			if f == nil {
				return nil, ojtErrors.NewValidationError(key, "unknown flag", name)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, ojtErrors.Wrapf(err, "failed to bind flag %s", name)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !ojtErrors.As(err, &notFound) {
			return nil, ojtErrors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ojtErrors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ojtErrors.NewValidationError("server.port", "must be in [1, 65535]", c.Server.Port)
	}
	if c.Models.Dir == "" {
		return ojtErrors.NewValidationError("models.dir", "cannot be empty", c.Models.Dir)
	}
	if err := c.Ensemble.Weights().Validate(); err != nil {
		return err
	}
	if c.Ensemble.NEstimators < 1 {
		return ojtErrors.NewValidationError("ensemble.n_estimators", "must be positive", c.Ensemble.NEstimators)
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return ojtErrors.NewValidationError("training.test_size", "must be in (0, 1)", c.Training.TestSize)
	}
	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ojtErrors.NewValidationError("logger.level", "unknown level", c.Logger.Level)
	}
	return nil
}
