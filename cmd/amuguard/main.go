package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"amuguard/internal/api"
	"amuguard/internal/config"
	"amuguard/internal/detect"
	"amuguard/internal/logging"
	"amuguard/internal/publish"
	"amuguard/internal/sched"
	"amuguard/internal/store"
	"amuguard/internal/weather"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to yaml or json config file")
	flag.Parse()

	var mgr *config.Manager
	var err error
	if *configPath != "" {
		mgr, err = config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		mgr = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting amuguard", "version", version, "storage", cfg.Storage.Driver)

	st, err := store.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("open store failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Init(ctx); err != nil {
		logger.Error("init store failed", "err", err)
		os.Exit(1)
	}

	kafkaPub := publish.NewKafka(cfg.Publish.Kafka, logger.With("module", "publish"))
	defer kafkaPub.Close()
	var pub detect.Publisher
	if kafkaPub != nil {
		pub = kafkaPub
	}
	writer := detect.NewAlertWriter(st, pub, logger.With("module", "alerts"))

	detectLog := logger.With("module", "detect")
	scheduler := sched.New(logger.With("module", "sched"), cfg.Scheduler.RunOnStart)
	daily := cfg.Scheduler.DailyInterval
	monthly := cfg.Scheduler.MonthlyInterval

	detectors := []struct {
		det   detect.Detector
		every cadence
	}{
		{detect.NewHistoricalSpike(st, cfg.Detection.Historical, writer, detectLog), dailyCadence},
		{detect.NewAbsoluteThreshold(st, cfg.Detection.Absolute, writer, detectLog), dailyCadence},
		{detect.NewCriticalDrugUsage(st, cfg.Detection.Critical, writer, detectLog), dailyCadence},
		{detect.NewSustainedHighUsage(st, cfg.Detection.Sustained, writer, detectLog), dailyCadence},
		{detect.NewPeerComparison(st, cfg.Detection.Peer, writer, detectLog), monthlyCadence},
		{detect.NewTrendIncrease(st, cfg.Detection.Trend, writer, detectLog), monthlyCadence},
	}
	for _, entry := range detectors {
		every := daily
		if entry.every == monthlyCadence {
			every = monthly
		}
		if err := scheduler.Register(sched.Job{Name: entry.det.Name(), Every: every, Run: entry.det.Run}); err != nil {
			logger.Error("register job failed", "job", entry.det.Name(), "err", err)
			os.Exit(1)
		}
	}

	if cfg.Weather.Enabled {
		client := weather.NewClient(cfg.Weather)
		job := weather.NewJob(st, client, writer, cfg.Weather, logger.With("module", "weather"))
		if err := scheduler.Register(sched.Job{Name: job.Name(), Every: daily, Run: job.Run}); err != nil {
			logger.Error("register job failed", "job", job.Name(), "err", err)
			os.Exit(1)
		}
	}

	api.Start(ctx, mgr, st, scheduler, logger.With("module", "api"), version)

	if cfg.Scheduler.Enabled {
		scheduler.Start(ctx)
	} else {
		<-ctx.Done()
	}
	logger.Info("amuguard stopped")
}

type cadence int

const (
	dailyCadence cadence = iota
	monthlyCadence
)
