// Package config holds the server's runtime settings and binds them to
// command-line flags and DRAWBOARD_* environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/drawing-board/internal/drawing"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "DRAWBOARD"

type Config struct {
	Bind       string
	Port       int
	StaticDir  string
	OutboxSize int

	// BoardIdleTimeout closes a created board once it has been empty this
	// long. The default board is never closed.
	BoardIdleTimeout time.Duration

	CanvasWidth   int
	CanvasHeight  int
	WeightMin     float64
	WeightMax     float64
	WeightDefault float64

	AllowedOrigins []string
	DatabaseURL    string
	Dev            bool
	Metrics        bool
	MDNS           bool
	MDNSName       string
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("invalid outbox size (must be positive): %d", c.OutboxSize)
	}
	if c.BoardIdleTimeout < 0 {
		return fmt.Errorf("invalid board idle timeout (must not be negative): %s", c.BoardIdleTimeout)
	}
	if c.StaticDir != "" {
		if fi, err := os.Stat(c.StaticDir); err != nil || !fi.IsDir() {
			return fmt.Errorf("static dir %q is not a directory", c.StaticDir)
		}
	}
	return c.Settings().Validate()
}

func (c *Config) Settings() drawing.Settings {
	return drawing.Settings{
		CanvasWidth:         c.CanvasWidth,
		CanvasHeight:        c.CanvasHeight,
		WeightSliderMinimum: c.WeightMin,
		WeightSliderMaximum: c.WeightMax,
		WeightSliderDefault: c.WeightDefault,
	}
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// BindFlags registers every setting on cmd. Flags given on the command line
// win over DRAWBOARD_* variables, which win over the defaults. PORT is read
// as well when DRAWBOARD_PORT is unset.
func BindFlags(cmd *cobra.Command, cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := drawing.DefaultSettings()
	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: DRAWBOARD_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 3000, "port to listen on (env: DRAWBOARD_PORT or PORT)")
	fs.StringVar(&cfg.StaticDir, "static-dir", "", "serve files from this directory at / (env: DRAWBOARD_STATIC_DIR)")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", 256, "queued events per client before it is dropped (env: DRAWBOARD_OUTBOX_SIZE)")
	fs.DurationVar(&cfg.BoardIdleTimeout, "board-idle-timeout", 10*time.Minute, "close created boards after this long without users, 0 keeps them (env: DRAWBOARD_BOARD_IDLE_TIMEOUT)")
	fs.IntVar(&cfg.CanvasWidth, "canvas-width", defaults.CanvasWidth, "canvas width in pixels (env: DRAWBOARD_CANVAS_WIDTH)")
	fs.IntVar(&cfg.CanvasHeight, "canvas-height", defaults.CanvasHeight, "canvas height in pixels (env: DRAWBOARD_CANVAS_HEIGHT)")
	fs.Float64Var(&cfg.WeightMin, "weight-min", defaults.WeightSliderMinimum, "smallest stroke weight (env: DRAWBOARD_WEIGHT_MIN)")
	fs.Float64Var(&cfg.WeightMax, "weight-max", defaults.WeightSliderMaximum, "largest stroke weight (env: DRAWBOARD_WEIGHT_MAX)")
	fs.Float64Var(&cfg.WeightDefault, "weight-default", defaults.WeightSliderDefault, "initial stroke weight (env: DRAWBOARD_WEIGHT_DEFAULT)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", nil, "extra origins allowed to open websockets (env: DRAWBOARD_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres DSN for the presence journal, disabled when empty (env: DRAWBOARD_DATABASE_URL)")
	fs.BoolVar(&cfg.Dev, "dev", false, "human-readable debug logging (env: DRAWBOARD_DEV)")
	fs.BoolVar(&cfg.Metrics, "metrics", true, "serve prometheus metrics at /metrics (env: DRAWBOARD_METRICS)")
	fs.BoolVar(&cfg.MDNS, "mdns", false, "advertise the server over mDNS (env: DRAWBOARD_MDNS)")
	fs.StringVar(&cfg.MDNSName, "mdns-name", "", "mDNS instance name, defaults to the hostname (env: DRAWBOARD_MDNS_NAME)")

	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if f.Name != "port" {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, envValue(v, f))
		}
	})
}

// envValue renders a viper value so pflag can parse it back. Slices come
// back from the environment as one comma separated string.
func envValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}
	return fmt.Sprintf("%v", v.Get(f.Name))
}
