// Command permavidd runs the PermaVid daemon in the foreground: the queue
// store, the workflow scheduler, and the HTTP API. It is the entrypoint for
// service managers; interactive use goes through `permavid daemon`.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"permavid/internal/config"
	"permavid/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	apiBind := flag.String("api", "", "override the configured API bind address (host:port)")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if bind := strings.TrimSpace(*apiBind); bind != "" {
		cfg.Paths.APIBind = bind
	}

	err = daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: strings.TrimSpace(*logLevel),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("permavidd: %v", err)
	}
}
