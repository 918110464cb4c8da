// Package serve runs the PPE inspection HTTP service.
package serve

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/ppe-go/internal/api"
	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/datastore"
	"github.com/tphakala/ppe-go/internal/detector"
	"github.com/tphakala/ppe-go/internal/httpserver"
	"github.com/tphakala/ppe-go/internal/inspection"
	"github.com/tphakala/ppe-go/internal/logger"
	"github.com/tphakala/ppe-go/internal/mqtt"
	"github.com/tphakala/ppe-go/internal/notification"
	"github.com/tphakala/ppe-go/internal/observability"
)

const mqttConnectTimeout = 15 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the PPE inspection HTTP API",
		Long:  "Load the detection model once and serve frame inspections over HTTP until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		conf.GetLogger().Warn("error setting up serve flags", logger.Error(err))
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "HTTP port for the API")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	for flag, key := range map[string]string{
		"port":      "webserver.port",
		"telemetry": "telemetry.enabled",
		"listen":    "telemetry.listen",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run wires the detector, optional sinks and the HTTP server, and blocks
// until ctx is cancelled or a server fails.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := GetLogger()
	if !settings.WebServer.Enabled {
		return fmt.Errorf("web server is disabled: set webserver.enabled to serve inspections")
	}

	var m *observability.Metrics
	if settings.Telemetry.Enabled {
		var err error
		if m, err = observability.NewMetrics(); err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	var detOpts []detector.Option
	if m != nil {
		detOpts = append(detOpts, detector.WithMetrics(m.Detector))
	}
	det, err := detector.New(settings, detOpts...)
	if err != nil {
		return err
	}
	defer det.Close()

	svcOpts := []inspection.Option{inspection.WithNode(settings.Main.Name)}
	if m != nil {
		svcOpts = append(svcOpts, inspection.WithMetrics(m.Inspection))
	}

	if store := datastore.New(settings); store != nil {
		if err := store.Open(); err != nil {
			return fmt.Errorf("failed to open inspection history: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close datastore", logger.Error(err))
			}
		}()
		svcOpts = append(svcOpts, inspection.WithStore(store))
	}

	if settings.MQTT.Enabled {
		client := mqtt.NewClient(settings)
		connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
		if err := client.Connect(connectCtx); err != nil {
			// the client keeps retrying, snapshots are dropped until it connects
			log.Warn("MQTT broker not reachable at startup",
				logger.String("broker", settings.MQTT.Broker), logger.Error(err))
		}
		cancel()
		defer client.Disconnect()
		svcOpts = append(svcOpts, inspection.WithPublisher(client, settings.MQTT.Topic))
	}

	notifier, err := notification.New(settings)
	if err != nil {
		return err
	}
	if notifier != nil {
		svcOpts = append(svcOpts, inspection.WithNotifier(notifier, settings.Notification.MinFlags))
	}

	svc := inspection.NewService(det, svcOpts...)
	defer svc.Close()

	detSettings := det.Settings()
	apiOpts := []api.Option{api.WithModelInfo(api.ModelInfo{
		Name:             det.ModelName(),
		VocabularySource: det.VocabularySource(),
		Confidence:       detSettings.Confidence,
		MaxDetections:    detSettings.MaxDetections,
		ImageSize:        detSettings.ImageSize,
	})}
	if m != nil {
		apiOpts = append(apiOpts, api.WithMetrics(m.HTTP))
	}
	server := httpserver.New(settings, svc, httpserver.WithAPIOptions(apiOpts...))

	var endpoint *observability.Endpoint
	if m != nil {
		if endpoint, err = observability.NewEndpoint(settings, m); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if endpoint != nil {
		g.Go(func() error {
			var wg sync.WaitGroup
			quit := make(chan struct{})
			endpoint.Start(&wg, quit)
			<-gctx.Done()
			close(quit)
			wg.Wait()
			return nil
		})
	}

	log.Info("PPE-Go service started",
		logger.String("node", settings.Main.Name),
		logger.String("model", det.ModelName()),
		logger.String("port", settings.WebServer.Port),
		logger.Bool("history", svc.HasStore()),
		logger.Bool("telemetry", m != nil))

	err = g.Wait()
	log.Info("PPE-Go service stopped")
	return err
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the serve command logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("serve")
	})
	return serviceLogger
}
