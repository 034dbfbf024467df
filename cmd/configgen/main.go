package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/edgetun/internal/config"
	"github.com/danmuck/edgetun/internal/observability"
)

const defaultPath = "cmd/probectl/config.toml"

func main() {
	kind := flag.String("kind", "probe", "config kind: probe")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to "+defaultPath+")")
	printCfg := flag.Bool("print", false, "with -validate, print the effective config")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logger := observability.InitLogger("configgen")

	if *kind != "probe" {
		logger.Fatal().Str("kind", *kind).Msg("configgen: unknown kind")
	}

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath
		}
		cfg, err := config.LoadProbeConfig(path)
		if err != nil {
			logger.Fatal().Err(err).Msg("configgen: validate")
		}
		svc, err := cfg.ServiceConfig()
		if err != nil {
			logger.Fatal().Err(err).Msg("configgen: convert")
		}
		if *printCfg {
			raw, err := config.Marshal(config.FromServiceConfig(svc))
			if err != nil {
				logger.Fatal().Err(err).Msg("configgen: marshal")
			}
			fmt.Fprint(os.Stdout, string(raw))
		}
		logger.Info().Str("kind", *kind).Str("path", path).Msg("configgen: validated")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		logger.Fatal().Err(err).Msg("configgen: write template")
	}
	logger.Info().Str("kind", *kind).Str("path", target).Msg("configgen: wrote template")
}
