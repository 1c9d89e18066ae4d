// Command kfetchd обслуживает устройство kfetch. Если задан порт, запускается
// HTTP API (маршруты устройства и MCP через POST /mcp), иначе MCP через stdio.
// FUSE с файлом устройства подключается в обоих режимах по желанию.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kfetch/internal/config"
	"kfetch/internal/fusedev"
	"kfetch/internal/handlers"
	"kfetch/internal/kfetch"
	"kfetch/internal/logger"
	"kfetch/internal/server"
	"kfetch/internal/sysinfo"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "kfetchd",
		Short:         "Serve the kfetch system report device",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("KFETCH_CONFIG")
			}
			return run(cmd.Context(), configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (env KFETCH_CONFIG)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "kfetchd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// Инициализируем логгер в самом начале, уровень уточняется после загрузки конфигурации
	logger.InitLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.Environment)

	device, err := kfetch.New(kfetch.Options{
		Provider:          sysinfo.NewCollector(),
		InitialMask:       kfetch.MaskFromRaw(uint64(cfg.Mask)),
		GenerationTimeout: cfg.GenerationTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	logger.Main.Info().
		Str("mask", device.Mask().String()).
		Dur("generation_timeout", cfg.GenerationTimeout).
		Dur("session_idle_timeout", cfg.SessionIdleTimeout).
		Msg("Device ready")

	// Маска из файла применяется только при изменении самого значения mask,
	// чтобы посторонние правки не отменяли записи сессий.
	appliedMask := cfg.Mask
	cfg.Watch(func(next *config.Config) {
		logger.SetLevel(next.LogLevel)
		if next.Mask != appliedMask {
			appliedMask = next.Mask
			mask := device.SetMask(next.Mask)
			logger.Main.Info().Str("mask", mask.String()).Msg("Mask reloaded from config")
		}
	})

	if cfg.SessionIdleTimeout > 0 {
		go reapIdleSessions(ctx, device, cfg.SessionIdleTimeout)
	}

	if cfg.FUSE.Mountpoint != "" {
		fuseServer, err := fusedev.Mount(fusedev.Options{
			Mountpoint: cfg.FUSE.Mountpoint,
			Device:     device,
			AllowOther: cfg.FUSE.AllowOther,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := fuseServer.Unmount(); err != nil {
				logger.FUSE.Error().Err(err).Msg("Error unmounting device filesystem")
			}
		}()
	}

	mcpServer := handlers.NewMCPServer(device)

	if !cfg.HTTPMode() {
		logger.Main.Info().Msg("Starting MCP server in stdio mode")
		stdio := mcpserver.NewStdioServer(mcpServer)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	}

	app := server.New(device, server.Options{
		APIKey:    cfg.APIKey,
		MCPServer: mcpServer,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Main.Info().
		Int("port", cfg.Port).
		Str("addr", addr).
		Bool("auth", cfg.APIKey != "").
		Msg("Starting Fiber server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber server on %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.Main.Info().Msg("Shutting down")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("shutting down fiber server: %w", err)
	}
	return nil
}

// reapIdleSessions периодически освобождает устройство от клиентов,
// которые открыли сессию и пропали
func reapIdleSessions(ctx context.Context, device *kfetch.Device, maxIdle time.Duration) {
	interval := maxIdle / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			device.ReapIdle(maxIdle)
		}
	}
}
