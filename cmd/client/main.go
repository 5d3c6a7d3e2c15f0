package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/orbitalrush/grid/internal/client"
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/observability"
	"github.com/orbitalrush/grid/internal/server"
)

// parseArgs turns "key=value" command-line tokens into a lookup map,
// matching the original client's `astris.exe host=yes` surface (§6):
// no flag package here since these aren't dash-prefixed flags.
func parseArgs(argv []string) map[string]string {
	args := make(map[string]string, len(argv))
	for _, tok := range argv {
		key, value, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		args[key] = value
	}
	return args
}

func main() {
	logger := observability.NewLogger()
	args := parseArgs(os.Args[1:])

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error(err, "failed to load config")
		os.Exit(1)
	}

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%s", cfg.Server.Port)
	}

	if args["host"] == "yes" {
		hostAddr := fmt.Sprintf(":%s", cfg.Server.Port)
		savePath := os.Getenv("SAVE_PATH")
		gridServer, err := server.New(cfg, hostAddr, savePath, logger)
		if err != nil {
			logger.Error(err, "failed to start in-process server")
			os.Exit(1)
		}
		ctx, cancelServer := context.WithCancel(context.Background())
		defer cancelServer()
		go func() {
			if err := gridServer.Serve(ctx); err != nil {
				logger.Error(err, "in-process server exited with error")
			}
		}()
		logger.Info("hosting locally", "addr", hostAddr)
	}

	var recorder *client.Recorder
	if path, ok := args["record_inputs_to"]; ok {
		if path == "" {
			logger.Error(nil, "record_inputs_to requires a filename")
			os.Exit(1)
		}
		recorder, err = client.NewRecorder(path)
		if err != nil {
			logger.Error(err, "failed to open recording file", "path", path)
			os.Exit(1)
		}
		logger.Info("recording inputs", "path", path)
	}

	var input client.InputSource
	var replayer *client.Replayer
	if path, ok := args["replay_inputs_from"]; ok {
		if path == "" {
			logger.Error(nil, "replay_inputs_from requires a filename")
			os.Exit(1)
		}
		replayer, err = client.OpenReplayer(path)
		if err != nil {
			logger.Error(err, "failed to open replay file", "path", path)
			os.Exit(1)
		}
		input = client.NewReplayInputSource(replayer)
		logger.Info("replaying inputs", "path", path)
	}

	runner, err := client.NewRunner(cfg, addr, input, recorder, logger)
	if err != nil {
		logger.Error(err, "failed to connect to server", "addr", addr)
		os.Exit(1)
	}
	defer runner.Close()
	if replayer != nil {
		defer replayer.Close()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(config.Timestep)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-quit:
			logger.Info("client exiting on signal")
			return
		case now := <-ticker.C:
			wallDt := now.Sub(last)
			last = now

			more, frameErr := runner.Frame(wallDt)
			if frameErr != nil {
				logger.Error(frameErr, "client frame failed")
				os.Exit(1)
			}
			if !more {
				logger.Info("replay exhausted, exiting cleanly")
				return
			}
		}
	}
}
