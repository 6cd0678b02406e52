package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/extpack/cmd/extpack/internal/commands"
	"github.com/wolfeidau/extpack/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Build    commands.BuildCmd    `cmd:"" help:"Build the extension"`
		Serve    commands.ServeCmd    `cmd:"" help:"Serve a development build with live reload"`
		Entries  commands.EntriesCmd  `cmd:"" help:"Print the discovered entry points"`
		Manifest commands.ManifestCmd `cmd:"" help:"Print the transformed manifest"`
		Pack     commands.PackCmd     `cmd:"" help:"Build and zip the extension for store upload"`
		Debug    bool                 `help:"Enable debug mode." env:"EXTPACK_DEBUG"`
		Version  kong.VersionFlag
	}
)

func main() {
	// .env must be in the environment before kong reads env tags
	if err := config.LoadEnv("."); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("extpack"),
		kong.Description("Bundle a browser extension from a conventional source tree."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
