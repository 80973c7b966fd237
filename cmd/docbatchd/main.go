// Command docbatchd runs the docbatch daemon with the default configuration
// lookup. It is equivalent to `docbatch daemon` and exists for service
// managers that expect a dedicated binary.
package main

import (
	"context"
	"log"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"docbatch/internal/config"
	"docbatch/internal/daemonrun"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Configuration file path")
	logLevel := pflag.String("log-level", "", "Override the configured log level")
	pflag.Parse()

	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("docbatchd: %v", err)
	}
}
