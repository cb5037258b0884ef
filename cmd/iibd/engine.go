package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/iib-interlock/internal/adc"
	"github.com/sweeney/iib-interlock/internal/board"
	"github.com/sweeney/iib-interlock/internal/config"
	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/interlock"
	"github.com/sweeney/iib-interlock/internal/log"
	"github.com/sweeney/iib-interlock/internal/profile"
	"github.com/sweeney/iib-interlock/internal/rtd"
	"github.com/sweeney/iib-interlock/internal/telemetry"
)

// journal persists applied parameters and interlock events.
type journal interface {
	SaveParam(p profile.Param, at time.Time) error
	Append(e interlock.Event) error
}

// engine is one board: sampling, the aggregator and the telemetry link.
type engine struct {
	sampler  *adc.Sampler
	bank     *rtd.Bank
	env      board.EnvSensor
	lines    gpio.IO
	agg      *interlock.Aggregator
	sched    *telemetry.Scheduler
	recv     *telemetry.Receiver
	detector interlock.Detector

	// journal may be nil.
	journal journal

	telemetryFailing bool
}

func newEngine(cfg *config.Config, d *devices, j journal) (*engine, error) {
	pol, err := cfg.LEDPolarity()
	if err != nil {
		return nil, err
	}
	v, err := cfg.Variant()
	if err != nil {
		log.Warning("%v: running without protection profile", err)
	}

	hw := profile.NewHardware(d.rtd)
	prof := profile.New(v, hw)
	tx := telemetry.NewTransmitter(d.bus, cfg.Board.ID)
	agg := interlock.New(prof, hw, d.lines, tx, pol)

	var fast [7][]uint16
	if desc := prof.Descriptor(); desc != nil {
		fast = desc.Fast
	}

	if err := hw.RTD.ProbeEnabled(); err != nil {
		log.Warning("rtd: %v", err)
	}

	sampler := adc.NewSampler(d.conv, cfg.ADC.MaxPolls)
	if !sampler.Bounded() {
		log.Warning("adc: max_polls is 0, a stalled conversion holds the tick until shutdown")
	}

	return &engine{
		sampler: sampler,
		bank:    hw.RTD,
		env:     d.env,
		lines:   d.lines,
		agg:     agg,
		sched:   telemetry.NewScheduler(tx, agg, fast),
		recv:    telemetry.NewReceiver(d.bus, tx, agg),
		journal: j,
	}, nil
}

// restore re-applies persisted parameter overrides.
func (e *engine) restore(params []profile.Param) {
	for _, p := range params {
		if err := e.agg.ApplyParam(p); err != nil {
			log.Warning("restore %s: %v", p, err)
			continue
		}
		log.Info("restored %s", p)
	}
}

// step runs one application tick. A sampling failure skips the tick.
func (e *engine) step(ctx context.Context, now time.Time) (interlock.Snapshot, []interlock.Event, error) {
	frame, err := e.sampler.Sample(ctx)
	if err != nil {
		return interlock.Snapshot{}, nil, fmt.Errorf("sample adc: %w", err)
	}
	inputs, err := e.lines.Inputs()
	if err != nil {
		return interlock.Snapshot{}, nil, fmt.Errorf("read inputs: %w", err)
	}
	env, err := e.env.Read()
	if err != nil {
		log.Debug("env: %v", err)
		env = board.Env{}
	}

	res := e.agg.Tick(profile.Input{
		ADC:    frame,
		RTD:    e.bank.SampleAll(),
		Env:    env,
		Inputs: inputs,
	})
	if res.Err != nil {
		log.Warning("tick: %v", res.Err)
	}
	if res.Cleared {
		if err := e.bank.Reset(); err != nil {
			log.Warning("rtd reset: %v", err)
		}
	}

	snap := e.agg.Snapshot()
	return snap, e.detector.Process(res, snap.Causes, snap.Variant, now), nil
}

// telemetryTick advances the send schedule and applies a pending parameter.
func (e *engine) telemetryTick(now time.Time) {
	if err := e.sched.Tick(); err != nil {
		if !e.telemetryFailing {
			log.Warning("telemetry: %v", err)
		}
		e.telemetryFailing = true
	} else if e.telemetryFailing {
		log.Info("telemetry: sending again")
		e.telemetryFailing = false
	}

	p, applied, err := e.recv.Poll()
	if err != nil {
		log.Warning("param %s: %v", p, err)
		return
	}
	if applied && e.journal != nil {
		if err := e.journal.SaveParam(p, now); err != nil {
			log.Warning("persist %s: %v", p, err)
		}
	}
}

func (e *engine) record(ev interlock.Event) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(ev); err != nil {
		log.Warning("history: %v", err)
	}
}
