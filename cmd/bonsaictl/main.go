// Command bonsaictl runs the autonomous plant-watering controller: it polls
// the soil moisture source, classifies plant health and drives the pump,
// exposing status over HTTP and telemetry over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bonsailab/bonsaictl/internal/api"
	"github.com/bonsailab/bonsaictl/internal/automation"
	"github.com/bonsailab/bonsaictl/internal/config"
	"github.com/bonsailab/bonsaictl/internal/metrics"
	"github.com/bonsailab/bonsaictl/internal/pump"
	"github.com/bonsailab/bonsaictl/internal/sensor"
	"github.com/bonsailab/bonsaictl/internal/storage"
	"github.com/bonsailab/bonsaictl/internal/telemetry"
	"github.com/bonsailab/bonsaictl/pkg/mqttconn"
)

func main() {
	configPath := flag.String("config", "config/settings.json", "settings file path")
	dryRun := flag.Bool("dry-run", false, "use a fake pump driver instead of GPIO")
	sim := flag.Bool("sim", false, "force the simulated moisture sensor")
	flag.Parse()

	if err := run(*configPath, *dryRun, *sim); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, dryRun, sim bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pump
	var driver pump.Driver
	if dryRun {
		log.Println("bonsaictl: dry run, pump output is simulated")
		driver = pump.NewFakeDriver()
	} else {
		driver, err = pump.NewGPIODriver(cfg.Pump.GPIOChip, cfg.Pump.GPIOPin)
		if err != nil {
			return fmt.Errorf("init pump gpio: %w", err)
		}
	}
	pmp := pump.New(driver)
	defer func() {
		if err := pmp.Close(); err != nil {
			log.Printf("bonsaictl: pump close: %v", err)
		}
	}()

	// MQTT
	var mqClient mqtt.Client
	if cfg.MQTT.Enabled {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = fmt.Sprintf("bonsaictl-%s", cfg.System.Plant)
		}
		mqClient, err = mqttconn.NewConn(ctx, mqttconn.Config{
			Host: cfg.MQTT.Host, Port: cfg.MQTT.Port,
			User: cfg.MQTT.User, Password: cfg.MQTT.Password,
			ClientID: clientID,
		})
		if err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	}

	// Sensor
	var src automation.MoistureSensor
	switch {
	case sim || cfg.Sensor.Source == "sim" || mqClient == nil:
		log.Println("bonsaictl: using simulated moisture sensor")
		src = sensor.NewSimSource(time.Now().UnixNano(), cfg.Sensor.Channel)
	default:
		mqttSrc := sensor.NewMQTTSource(cfg.Sensor.MaxReadingAge())
		consumer := mqttconn.NewConsumer(mqClient, cfg.Sensor.Topic, 1, mqttSrc.Handle)
		go consumer.ConsumeMessage(ctx)
		src = mqttSrc
	}

	// History store
	var store automation.HistoryStore
	var storeOK func() bool
	var mem *storage.MemoryStore
	if cfg.Influx.Enabled {
		influx, err := storage.NewInfluxStore(storage.InfluxConfig{
			URL: cfg.Influx.URL, Token: cfg.Influx.Token,
			Org: cfg.Influx.Org, Bucket: cfg.Influx.Bucket,
		}, cfg.System.Plant)
		if err != nil {
			return fmt.Errorf("init influx store: %w", err)
		}
		defer influx.Close()
		storeOK = influx.Ready
		store = storage.NewBreakerStore(influx, "influx")
	} else {
		log.Println("bonsaictl: using in-memory history store")
		mem = storage.NewMemoryStore(0)
		store = mem
	}

	var tpub *telemetry.Publisher
	if mqClient != nil {
		tpub = telemetry.NewPublisher(mqttconn.NewPublisher(mqClient), cfg.System.Plant)
		store = telemetry.WrapStore(store, tpub)
	}

	// Metrics wrap last so every store outcome is counted.
	var eng *automation.Engine
	registry := prometheus.NewRegistry()
	set := metrics.New(registry, pmp.RuntimeSeconds, func() float64 {
		if eng == nil {
			return 0
		}
		return eng.Status().AdaptiveThreshold
	})
	store = metrics.InstrumentStore(store, set)

	eng = automation.New(src, pmp, store, automation.Config{
		MoistureThreshold:  cfg.Sensor.MoistureThreshold,
		SensorWarnInterval: cfg.Sensor.WarnInterval(),
		InitialRunDuration: cfg.Pump.InitialRun(),
		PulseOnTime:        cfg.Pump.PulseOn(),
		PulseOffTime:       cfg.Pump.PulseOff(),
		PulseDuration:      cfg.Pump.PulseTotal(),
		PostWaterWait:      cfg.Pump.PostWaterWait(),
		Cooldown:           cfg.System.Cooldown(),
		TickInterval:       cfg.System.Tick(),
		RecomputeTicks:     cfg.System.RecomputeTicks,
	})
	if len(cfg.System.WateringSchedule) > 0 {
		if err := eng.SetSchedule(cfg.System.WateringSchedule); err != nil {
			return fmt.Errorf("invalid watering schedule: %w", err)
		}
	}

	eng.AddMoistureCallback(set.MoistureCallback())
	eng.AddStateCallback(set.StateCallback())
	if tpub != nil {
		eng.AddStateCallback(tpub.StateCallback())
	}

	eng.Start()
	defer eng.Stop()

	// HTTP
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewMux(eng, api.Deps{
			MQTT: mqClient, StoreOK: storeOK, Memory: mem, Registry: registry,
		}),
	}
	go func() {
		log.Printf("bonsaictl: http listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("bonsaictl: http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("bonsaictl: shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("bonsaictl: http shutdown: %v", err)
	}
	return nil
}
