package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/iib-interlock/internal/config"
	"github.com/sweeney/iib-interlock/internal/interlock"
	"github.com/sweeney/iib-interlock/internal/log"
	"github.com/sweeney/iib-interlock/internal/mqtt"
	"github.com/sweeney/iib-interlock/internal/status"
	"github.com/sweeney/iib-interlock/internal/store"
	"github.com/sweeney/iib-interlock/internal/web"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the protection engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config %s: %w", opts.configPath, err)
			}
			return run(cfg)
		},
	}
}

func run(cfg *config.Config) error {
	d, err := openDevices(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var (
		st      *store.Store
		jrnl    journal
		history web.History
	)
	if cfg.Store.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
			return fmt.Errorf("store dir: %w", err)
		}
		variant := cfg.Board.Variant
		if v, err := cfg.Variant(); err == nil {
			variant = v.String()
		}
		st, err = store.Open(cfg.Store.Path, variant, cfg.Store.MaxHistory)
		if err != nil {
			return err
		}
		defer st.Close()
		jrnl, history = st, st
	}

	e, err := newEngine(cfg, d, jrnl)
	if err != nil {
		return err
	}
	if st != nil {
		params, err := st.Params()
		if err != nil {
			log.Warning("stored params: %v", err)
		}
		e.restore(params)
	}
	return serve(cfg, e, history)
}

func serve(cfg *config.Config, e *engine, history web.History) error {
	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Board:      int(cfg.Board.ID),
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			return err
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Board:       int(cfg.Board.ID),
		Variant:     cfg.Board.Variant,
		AppTickMs:   cfg.Ticks.App.Milliseconds(),
		TelemetryMs: cfg.Ticks.Telemetry.Milliseconds(),
		LEDPolarity: cfg.Board.LEDPolarity,
		CANBackend:  cfg.CAN.Backend,
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
	})
	tracker.Update(e.agg.Snapshot(), e.detector.Counts())

	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Warning("failed to publish startup event: %v", err)
		} else {
			log.Info("published startup event")
		}
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, e.agg, history)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening on %s", cfg.HTTP.Addr)
	}

	if err := e.agg.Start(); err != nil {
		log.Warning("startup leds: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := e.recv.Run(ctx); err != nil {
			log.Error("can receiver: %v", err)
		}
	}()

	log.Info("started: board=%d variant=%s app=%v telemetry=%v can=%s",
		cfg.Board.ID, cfg.Board.Variant, cfg.Ticks.App, cfg.Ticks.Telemetry, cfg.CAN.Backend)

	app := time.NewTicker(cfg.Ticks.App)
	defer app.Stop()
	tele := time.NewTicker(cfg.Ticks.Telemetry)
	defer tele.Stop()
	leds := time.NewTicker(cfg.Ticks.LED)
	defer leds.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctx, e, publisher, mqttStatus, tracker, cfg.MQTT.Heartbeat, time.Now,
		tickers{app: app.C, telemetry: tele.C, led: leds.C}, sigCh)
}

// tickers are the three mainline cadences. Ticks never overlap: the loop
// handles one at a time.
type tickers struct {
	app       <-chan time.Time
	telemetry <-chan time.Time
	led       <-chan time.Time
}

// runLoop is the mainline. publisher and mqttStatus may be nil.
func runLoop(ctx context.Context, e *engine, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, t tickers, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Info("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if publisher == nil {
				return nil
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warning("failed to publish shutdown event: %v", err)
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case <-ctx.Done():
			return nil

		case <-t.app:
			ts := now()
			snap, events, err := e.step(ctx, ts)
			if err != nil {
				log.Warning("%v", err)
				continue
			}

			for _, ev := range events {
				logEvent(ev)
				if publisher != nil {
					if err := publisher.Publish(ev); err != nil {
						log.Warning("publish error: %v", err)
					}
				}
				tracker.RecordEvent(ev)
				e.record(ev)
			}

			tracker.Update(snap, e.detector.Counts())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if publisher != nil && heartbeat > 0 && ts.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = ts
				hb := mqtt.SystemEvent{
					Timestamp:  ts,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hb); err != nil {
					log.Warning("heartbeat publish error: %v", err)
				}
			}

		case <-t.telemetry:
			e.telemetryTick(now())

		case <-t.led:
			if err := e.agg.IndicationLEDs(); err != nil {
				log.Warning("leds: %v", err)
			}
		}
	}
}

func logEvent(ev interlock.Event) {
	switch ev.Type {
	case interlock.EventInterlock:
		log.Warning("event: %s bits=0x%08X causes=%v", ev.Type, ev.InterlockBits, ev.Causes)
	case interlock.EventAlarm:
		log.Warning("event: %s bits=0x%08X causes=%v", ev.Type, ev.AlarmBits, ev.Causes)
	default:
		log.Info("event: %s", ev.Type)
	}
}
