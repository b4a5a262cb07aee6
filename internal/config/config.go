package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/ironmon/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultPort           = "/dev/ttyUSB0"
	DefaultBaud           = 115200
	DefaultProtocol       = "combined"
	DefaultCapacity       = 600
	DefaultStatusInterval = 1
	DefaultCaptureDB      = "/var/lib/ironmon/capture.db"
)

type Config struct {
	Port           string `mapstructure:"port"`
	Baud           int    `mapstructure:"baud"`
	Protocol       string `mapstructure:"protocol"`
	Capacity       int    `mapstructure:"capacity"`
	StatusInterval int    `mapstructure:"status_interval"`
	Capture        bool   `mapstructure:"capture"`
	CaptureDB      string `mapstructure:"capture_db"`
	Debug          bool   `mapstructure:"debug"`
	Verbose        bool   `mapstructure:"verbose"`
}

// Load merges configuration from defaults, /etc/ironmon.toml (or the file
// named by IRONMON_CONFIG), environment variables and command line flags.
// Flags win over the file, the file wins over defaults.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("baud", DefaultBaud)
	v.SetDefault("protocol", DefaultProtocol)
	v.SetDefault("capacity", DefaultCapacity)
	v.SetDefault("status_interval", DefaultStatusInterval)
	v.SetDefault("capture", false)
	v.SetDefault("capture_db", DefaultCaptureDB)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)

	flags := pflag.NewFlagSet("ironmon", pflag.ContinueOnError)
	flags.String("port", DefaultPort, "Serial device path")
	flags.Int("baud", DefaultBaud, "Serial baud rate")
	flags.String("protocol", DefaultProtocol, "Wire protocol: legacy or combined")
	flags.Int("capacity", DefaultCapacity, "Number of samples kept in history")
	flags.Int("status-interval", DefaultStatusInterval, "Seconds between status reports")
	flags.Bool("capture", false, "Record accepted samples to the capture database")
	flags.String("capture-db", DefaultCaptureDB, "Path to the capture database")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")

	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	// Load configuration from file
	if path := os.Getenv("IRONMON_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ironmon")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v.SetEnvPrefix("IRONMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Flags set on the command line override the file
	flags.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Port == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "port must not be empty")
	}
	if c.Baud <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"baud", c.Baud})
	}
	if c.Capacity <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"capacity", c.Capacity})
	}
	if c.StatusInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"status_interval", c.StatusInterval})
	}
	if c.Protocol != "legacy" && c.Protocol != "combined" {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{"protocol", c.Protocol})
	}
	if c.Capture && c.CaptureDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "capture_db must not be empty when capture is enabled")
	}

	return nil
}
