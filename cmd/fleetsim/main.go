package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charging-platform/fleet-simulator/internal/config"
	"github.com/charging-platform/fleet-simulator/internal/logger"
	"github.com/charging-platform/fleet-simulator/internal/pending"
	"github.com/charging-platform/fleet-simulator/internal/persist"
	"github.com/charging-platform/fleet-simulator/internal/scheduler"
	"github.com/charging-platform/fleet-simulator/internal/session"
	"github.com/charging-platform/fleet-simulator/internal/tnr"
	"github.com/charging-platform/fleet-simulator/internal/transport"
	"github.com/charging-platform/fleet-simulator/internal/validation"
	"github.com/charging-platform/fleet-simulator/internal/vehicle"
)

func main() {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logging.
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Async:  cfg.Log.Async,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Logger initialized")

	// 3. Wire the persistence writer. A Redis outage at startup is not fatal
	// to a simulator run, so fall back to NoopWriter and keep going.
	var writer persist.Writer = persist.NoopWriter{}
	redisWriter, err := persist.NewRedisWriter(cfg.Redis)
	if err != nil {
		log.Warnf("Persistence disabled: could not reach Redis at %s: %v", cfg.Redis.Addr, err)
	} else {
		writer = redisWriter
		log.Info("Persistence writer connected")
	}

	// 4. Wire the TNR recorder. Same fallback posture as persistence: a
	// Kafka outage degrades recording, not simulation.
	var recorder tnr.Recorder = tnr.NoopRecorder{}
	kafkaSink, err := tnr.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, log)
	if err != nil {
		log.Warnf("TNR recording disabled: could not build Kafka sink: %v", err)
	} else if err := kafkaSink.Start(); err != nil {
		log.Warnf("TNR recording disabled: could not start Kafka sink: %v", err)
	} else {
		recorder = kafkaSink
		log.Info("TNR recorder started")
	}

	// 5. Vehicle catalogue. No file-based loader exists yet, so the fleet
	// draws from the built-in default profile until one is added.
	catalogue := vehicle.DefaultCatalogue()

	// 6. Build the fleet registry and arm every session it creates with the
	// recorder/writer above.
	registry := session.NewRegistry()
	registry.Recorder = recorder
	registry.Persist = writer

	profile, _ := catalogue.Lookup(vehicle.Default().ID)
	charger := vehicle.ChargerTypes[vehicle.ChargerDC50]

	transportCfg := transport.Config{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		ReadTimeout:      cfg.Transport.ReadTimeout,
		MaxMessageSize:   cfg.Transport.MaxMessageSize,
		QueueDepth:       cfg.Transport.QueueDepth,
		BackoffInitial:   cfg.Transport.BackoffInitial,
		BackoffMax:       cfg.Transport.BackoffMax,
		BackoffJitter:    cfg.Transport.BackoffJitter,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectors := cfg.Fleet.DefaultConnectors
	if connectors <= 0 {
		connectors = 1
	}

	clients := make([]*transport.Client, 0, connectors)
	for i := 0; i < connectors; i++ {
		id := fmt.Sprintf("CP%03d", i+1)
		tmpl := session.Template{
			ChargePointID:       id,
			CSMSURL:             cfg.Fleet.CSMSURL,
			BearerToken:         cfg.Security.DefaultBearerToken,
			ConnectorID:         1,
			VendorID:            "fleet-simulator",
			Model:               string(charger.Kind),
			FirmwareVersion:     cfg.App.Version,
			HeartbeatSeconds:    int(cfg.OCPP.HeartbeatInterval.Seconds()),
			MeterValueSeconds:   int(cfg.OCPP.MeterValueInterval.Seconds()),
			ClockAlignedSeconds: int(cfg.OCPP.ClockAlignedDataInterval.Seconds()),
			VehicleProfile:      profile,
			ChargerType:         charger,
			IdTag:               id + "-idtag",
			InitialSoC:          20,
			TargetSoC:           100,
		}

		s, mb := registry.Create(id, tmpl)

		pendingTable := pending.New()
		validator := validation.NewValidator()
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))

		client := transport.New(s, mb, pendingTable, validator, log, transportCfg)
		sched := scheduler.New(s, mb, pendingTable, client, rng)
		client.SetHeartbeatAckHook(sched.HeartbeatAcked)

		go client.Run(ctx)
		go sched.Run(ctx)

		clients = append(clients, client)
	}
	log.Infof("Fleet started: %d simulated charge point(s) dialing %s", connectors, cfg.Fleet.CSMSURL)

	// 7. Metrics exposition.
	go startMetricsServer(cfg.GetMetricsAddr(), log)

	// 8. Wait for a termination signal, then shut everything down in order.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down fleet simulator...")

	cancel()
	for _, client := range clients {
		client.Close()
	}
	log.Info("Transport clients closed")

	if err := kafkaSinkStop(recorder); err != nil {
		log.Errorf("Error stopping TNR recorder: %v", err)
	} else {
		log.Info("TNR recorder stopped")
	}

	if err := writer.Close(); err != nil {
		log.Errorf("Error closing persistence writer: %v", err)
	}
	log.Info("Persistence writer closed")

	log.Info("Fleet simulator gracefully stopped.")
}

// kafkaSinkStop calls the recorder's Stop, which every tnr.Recorder has
// (the no-op recorder's returns nil).
func kafkaSinkStop(recorder tnr.Recorder) error {
	return recorder.Stop()
}

func startMetricsServer(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Metrics server failed: %v", err)
	}
}
