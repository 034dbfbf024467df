package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/edgetun/internal/observability"
	"github.com/danmuck/edgetun/internal/probe"
)

func main() {
	path := flag.String("config", "", "probe config path (defaults apply when empty)")
	flag.Parse()

	logger := observability.InitLogger("probectl")

	cfg := probe.DefaultServiceConfig()
	if *path != "" {
		loaded, err := loadServiceConfig(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "probectl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc, err := probe.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probectl: %v\n", err)
		os.Exit(1)
	}
	logger.Info().
		Str("id", cfg.ProbeID).
		Str("byte_order", cfg.Stream.Codec.ByteOrder.String()).
		Str("int_encoding", cfg.Stream.Codec.IntEncoding.String()).
		Bool("echo", cfg.Echo).
		Msg("probectl.main starting")
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "probectl: %v\n", err)
		os.Exit(1)
	}
}
