package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/Swordingman/easychat/internal/app"
	"github.com/Swordingman/easychat/internal/paths"
)

func main() {
	configFlag := flag.String("config", "", "config file path (overrides ~/.easychat/config.toml)")
	flag.Parse()

	if err := paths.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{ConfigPath: *configFlag}),
	).Run()
}
