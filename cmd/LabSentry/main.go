// Package main is the entry point of the LabSentry service.
// It initializes the Kratos application with the HTTP API, the power
// monitor loop and the retention cron job.
package main

import (
	"context"
	"flag"
	"os"

	"LabSentry/internal/biz"
	"LabSentry/internal/conf"
	"LabSentry/internal/server"
	zapLogger "LabSentry/pkg/log"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "LabSentry"
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func newApp(
	logger log.Logger,
	hs *http.Server,
	ms *server.MonitorServer,
	retention *conf.Retention,
	housekeeping *biz.HousekeepingTask,
) *kratos.App {
	opts := []kratos.Option{
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			ms,
		),
	}

	if c := StartRetentionCron(retention, housekeeping, logger); c != nil {
		opts = append(opts, kratos.BeforeStop(func(context.Context) error {
			c.Stop()
			return nil
		}))
	}

	return kratos.New(opts...)
}

func main() {
	flag.Parse()

	// Load configuration using Viper with environment variable support
	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		// Use fallback logger before Zap is initialized
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize Zap logger from configuration
	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	// Create Kratos adapter for Zap logger
	logger := zapLogger.NewKratosAdapter(zapLog)

	logger = log.With(logger,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	log.NewHelper(logger).Infow(
		"msg", "LabSentry service starting",
		"log.level", bc.Log.Level,
		"log.format", bc.Log.Format,
		"log.env", bc.Log.Env,
		"shutdown.enabled", bc.Shutdown != nil && bc.Shutdown.Enabled,
	)

	app, cleanup, err := wireApp(bc, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
