package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfeidau/extpack/internal/assets"
	"github.com/wolfeidau/extpack/internal/config"
	"github.com/wolfeidau/extpack/internal/devserver"
	"github.com/wolfeidau/extpack/internal/logger"
)

// ServeCmd runs the development server.
type ServeCmd struct {
	ProjectFlags `embed:""`

	Host         string   `help:"listen host (default: localhost)" env:"EXTPACK_HOST"`
	Port         int      `short:"p" help:"listen port (default: 3003)" env:"EXTPACK_PORT"`
	Open         bool     `help:"open the browser once the server is up" default:"true" negatable:"" env:"EXTPACK_OPEN"`
	Compress     bool     `help:"gzip responses" default:"true" negatable:"" env:"EXTPACK_COMPRESS"`
	AllowedHosts []string `help:"extra Host headers to accept, 'all' accepts any" env:"EXTPACK_ALLOWED_HOSTS"`
	Telemetry    bool     `help:"export traces and metrics over OTLP" env:"EXTPACK_TELEMETRY"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer startTelemetry(ctx, c.Telemetry, globals.Version, log)()

	p, err := c.project()
	if err != nil {
		return err
	}

	pipeline, err := assets.New(c.assetsConfig(p))
	if err != nil {
		return err
	}
	defer pipeline.Dispose()

	srv := devserver.New(c.serverConfig(p), pipeline)

	log.Info().Str("version", globals.Version).Str("mode", p.Mode).Msg("Starting dev server")
	return srv.Run(ctx)
}

// project resolves the settings with the server flags applied.
func (c *ServeCmd) project() (config.Project, error) {
	p, err := c.settings(serveDefaults())
	if err != nil {
		return config.Project{}, err
	}
	return p.Merge(config.Project{Host: c.Host, Port: c.Port, AllowedHosts: c.AllowedHosts}), nil
}

func serveDefaults() config.Project {
	p := config.Defaults()
	p.Mode = string(assets.ModeDevelopment)
	return p
}

func (c *ServeCmd) serverConfig(p config.Project) devserver.Config {
	l := c.layout(p)

	cfg := devserver.DefaultConfig()
	cfg.Host = p.Host
	cfg.Port = p.Port
	cfg.Open = c.Open
	cfg.Compress = c.Compress
	cfg.StaticDir = l.Public()
	cfg.WatchDirs = []string{l.Src(), l.Public()}
	// extpack.yaml is read once at startup, editing it needs a restart
	cfg.WatchFiles = []string{l.PackageJSON()}
	cfg.AllowedHosts = append([]string{p.Host}, p.AllowedHosts...)
	return cfg
}
