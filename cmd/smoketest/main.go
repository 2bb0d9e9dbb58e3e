// Command smoketest drives a running arena service end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/arena/internal/smoketest"
	"github.com/okian/arena/pkg/logger"
)

const defaultRunTimeout = 5 * time.Minute

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "smoke test failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "smoketest",
		Usage: "register boxers, run fights and check the arena service's answers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: smoketest.DefaultBaseURL, Usage: "base URL of the service", EnvVars: []string{"ARENA_SMOKE_URL"}},
			&cli.IntFlag{Name: "boxers", Value: smoketest.DefaultBoxers, Usage: "number of boxers to register"},
			&cli.IntFlag{Name: "rounds", Value: smoketest.DefaultRounds, Usage: "number of fights to run"},
			&cli.IntFlag{Name: "workers", Value: smoketest.DefaultWorkers, Usage: "concurrent registrations"},
			&cli.DurationFlag{Name: "timeout", Value: smoketest.DefaultTimeout, Usage: "HTTP request timeout"},
			&cli.DurationFlag{Name: "run-timeout", Value: defaultRunTimeout, Usage: "deadline for the whole run"},
			&cli.Uint64Flag{Name: "seed", Usage: "seed for generated boxers (0 picks one)"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every fight"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	if err := logger.SetLevelString(c.String("log-level")); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("run-timeout"))
	defer cancel()

	_, err := smoketest.Run(ctx, &smoketest.Config{
		BaseURL: c.String("url"),
		Boxers:  c.Int("boxers"),
		Rounds:  c.Int("rounds"),
		Workers: c.Int("workers"),
		Timeout: c.Duration("timeout"),
		Seed:    c.Uint64("seed"),
		Verbose: c.Bool("verbose"),
	})
	return err
}
