package main

import (
	"context"
	"flag"

	"github.com/spf13/viper"
	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
	"github.com/wayfarer-nav/wayfarer/pkg/engine"
	"github.com/wayfarer-nav/wayfarer/pkg/http"
	"github.com/wayfarer-nav/wayfarer/pkg/logger"
	"github.com/wayfarer-nav/wayfarer/pkg/router"
	"github.com/wayfarer-nav/wayfarer/pkg/util"
	"go.uber.org/zap"
)

var (
	endpoint      = flag.String("endpoint", "http://localhost:5000", "osrm-compatible routing endpoint")
	tileStorePath = flag.String("tile_store_path", "./data/tilestore", "directory for the offline route tile store")
	source        = flag.String("source", "hybrid", "routing source: online, offline or hybrid")
	historyPath   = flag.String("history_path", "./data/navigation_history.jsonl", "navigation history file, empty disables recording")
	logFile       = flag.String("log_file", "", "tee logs into a size-rotated file, empty logs to stderr only")
)

func main() {
	flag.Parse()

	var (
		log *zap.Logger
		err error
	)
	if *logFile != "" {
		log, err = logger.NewWithFile(*logFile)
	} else {
		log, err = logger.New()
	}
	if err != nil {
		panic(err)
	}

	if err := util.ReadConfig(); err != nil {
		log.Info("no config file found, using defaults", zap.Error(err))
	}
	viper.SetDefault("ACCESS_TOKEN", "")
	_ = viper.BindEnv("ACCESS_TOKEN")

	cache, err := engine.BuildCache(engine.CacheConfig{Path: *tileStorePath, MaxEntries: 256}, log)
	if err != nil {
		panic(err)
	}

	recorder := engine.NewNoopHistoryRecorder()
	if *historyPath != "" {
		recorder = engine.NewHistoryRecorder(*historyPath)
	}

	routingSource := parseSource(*source)
	nativeRouter, err := engine.BuildRouter(router.NativeSource(routingSource), cache, recorder,
		engine.RouterConfig{Endpoint: *endpoint}, log)
	if err != nil {
		panic(err)
	}

	dispatcher := router.NewRequestDispatcher(router.Config{
		Credentials: datastructure.Credentials{
			Host:        *endpoint,
			AccessToken: viper.GetString("ACCESS_TOKEN"),
		},
	}, nativeRouter, log)

	api := http.NewServer(log)

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}
	api.Use(ctx, log, false, dispatcher)

	signal := http.GracefulShutdown()

	log.Info("Wayfarer Navigation Server Stopped", zap.String("signal", signal.String()))
	cleanup()
	dispatcher.Close()
	nativeRouter.Close()
	_ = recorder.Close()
}

func parseSource(s string) router.RoutingSource {
	switch s {
	case "online":
		return router.SourceOnline
	case "offline":
		return router.SourceOffline
	default:
		return router.SourceHybrid
	}
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
