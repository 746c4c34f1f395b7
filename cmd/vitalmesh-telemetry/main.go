package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"vitalmesh/internal/config"
	"vitalmesh/internal/consumer"
	httpapi "vitalmesh/internal/http"
	"vitalmesh/internal/models"
	"vitalmesh/internal/motion"
	"vitalmesh/internal/repository"
	"vitalmesh/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"vitalmesh/common/logger"
	rediscommon "vitalmesh/common/redis"
)

const serviceName = "vitalmesh-telemetry"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "VitalMesh sensor poller and motion classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newOnceCmd())
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll sensors and serve the HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cfg, log)
		},
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting vitalmesh-telemetry service",
		zap.String("device_id", cfg.Telemetry.DeviceID),
		zap.String("backend", cfg.Telemetry.Fetch.Backend),
		zap.Duration("poll_interval", cfg.Telemetry.Poll.Interval),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry, err := service.NewTelemetryService(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create telemetry service: %w", err)
	}
	if err := telemetry.Start(ctx); err != nil {
		return err
	}

	router, err := buildRouter(ctx, cfg, telemetry, log)
	if err != nil {
		return err
	}
	server := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", zap.Error(err))
	}
	cancel()
	if err := telemetry.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
	}

	log.Info("Service stopped")
	return nil
}

func buildRouter(ctx context.Context, cfg *config.Config, telemetry *service.TelemetryService, log *zap.Logger) (*httpapi.Router, error) {
	app := telemetry.FirebaseApp()

	var verifier httpapi.TokenVerifier
	if cfg.HTTP.AuthEnabled {
		authClient, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
		}
		verifier = httpapi.NewFirebaseTokenVerifier(authClient)
	} else {
		log.Warn("HTTP authentication is disabled")
	}

	router := httpapi.NewRouter(httpapi.NewAuthenticator(verifier, log), log)

	var alerts httpapi.AlertReader
	if a := telemetry.Alerts(); a != nil {
		alerts = a
	}
	router.RegisterTelemetryRoutes(httpapi.NewTelemetryHandler(telemetry.Poller(), alerts, log))
	router.RegisterChatRoutes(httpapi.NewChatHandler(service.NewChatService(), log))

	if app != nil {
		fs, err := app.Firestore(ctx)
		if err != nil {
			log.Warn("Firestore unavailable, profile routes disabled", zap.Error(err))
		} else {
			repo := repository.NewFirestoreProfileRepository(fs, log)
			router.RegisterProfileRoutes(httpapi.NewProfileHandler(service.NewProfileService(repo, log), log))
		}
	} else {
		log.Warn("Firebase is not configured, profile routes disabled")
	}
	return router, nil
}

func newOnceCmd() *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and print the snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			if cached {
				// 只读 serve 写入的实时缓存，不访问传感器存储
				client, err := rediscommon.Connect(ctx, &cfg.Redis)
				if err != nil {
					return err
				}
				defer rediscommon.Close(client)

				snap, err := consumer.NewCacheManager(cfg, client, log).GetRealtimeData(ctx, cfg.Telemetry.DeviceID)
				if err != nil {
					return err
				}
				return printJSON(cmd, snap)
			}

			telemetry, err := service.NewTelemetryService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer telemetry.Stop(ctx)

			snap := telemetry.Poller().Poll(ctx)
			return printJSON(cmd, snap)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "print the snapshot cached in Redis instead of polling")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var accel, gyro float64
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a motion state from accelerometer / gyroscope magnitudes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state := motion.Classify(accel, gyro)
			return printJSON(cmd, models.MotionStatus{
				State:          state,
				Label:          state.Label(),
				Severity:       motion.SeverityOf(state),
				AccelMagnitude: accel,
				GyroMagnitude:  gyro,
			})
		},
	}
	cmd.Flags().Float64Var(&accel, "accel", 1.0, "accelerometer magnitude (g)")
	cmd.Flags().Float64Var(&gyro, "gyro", 0, "gyroscope magnitude (deg/s)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the cached stress history of a device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			if deviceID == "" {
				deviceID = cfg.Telemetry.DeviceID
			}

			ctx := cmd.Context()
			client, err := rediscommon.Connect(ctx, &cfg.Redis)
			if err != nil {
				return err
			}
			defer rediscommon.Close(client)

			points, err := consumer.NewCacheManager(cfg, client, log).GetHistory(ctx, deviceID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %s\n", "SAMPLE", "STRESS")
			for _, p := range points {
				fmt.Fprintf(out, "%-8d %.1f\n", p.SampleNumber, p.StressLevel)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id (defaults to DEVICE_ID)")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
