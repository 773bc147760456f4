package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/logs"
)

var (
	LogLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Usage:   "log level: debug, info, warn or error",
		EnvVars: []string{"ZKMIPS_LOG_LEVEL"},
		Value:   "info",
	}
	LogFileFlag = &cli.PathFlag{
		Name:  "log.file",
		Usage: "also write JSON log records to this file",
	}
	PProfCPUFlag = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "write a CPU profile to the working directory",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "vybium-zkmips"
	app.Usage = "zkMIPS assembler, machine and constraint reducer"
	app.Description = "Assemble zkMIPS source, execute it, and check the reduced constraint system"
	app.Flags = []cli.Flag{LogLevelFlag, LogFileFlag, PProfCPUFlag}
	app.Before = setupLogging
	app.Commands = []*cli.Command{
		AssembleCommand,
		RunCommand,
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted\n")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// setupLogging installs the process-wide logger before any command runs
func setupLogging(ctx *cli.Context) error {
	level, err := logs.ParseLevel(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return err
	}
	logs.Level.Set(level)

	var extra []slog.Handler
	if path := ctx.Path(LogFileFlag.Name); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", path, err)
		}
		extra = append(extra, logs.JSONHandler(f))
	}
	slog.SetDefault(logs.New(os.Stderr, extra...))
	return nil
}
