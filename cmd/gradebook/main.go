package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/gradebook/internal/app"
	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/config"
	"github.com/shrimpsizemoose/gradebook/internal/metrics"
)

func main() {
	if err := godotenv.Load(); err == nil {
		logger.Debug.Println("Loaded .env")
	}

	var configPath = flag.String("config", envOr(config.EnvPath, config.DefaultPath), "Path to config file")
	var metricsOut = flag.String("metrics-out", os.Getenv("GRADEBOOK_METRICS_OUT"), "Write metrics in textfile format to this path on exit")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: gradebook [-config FILE] [-metrics-out FILE] COMMAND [ARGS]")
		flag.PrintDefaults()
		printUsage(flag.CommandLine.Output())
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}

	service, err := app.NewService(cfg)
	if err != nil {
		logger.Error.Fatalf("Failed to open database: %s", apperr.Message(err, cfg.Config.Language))
	}

	cli := commandLine{svc: service, out: os.Stdout}
	runErr := cli.run(flag.Args())

	if err := service.Close(); err != nil {
		logger.Error.Printf("Failed to close database: %v", err)
	}
	if *metricsOut != "" {
		if err := metrics.WriteTextfile(*metricsOut); err != nil {
			logger.Error.Printf("%v", err)
		}
	}

	if runErr != nil {
		if runErr != errHelp {
			fmt.Fprintln(os.Stderr, apperr.Message(runErr, service.Lang()))
		}
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
