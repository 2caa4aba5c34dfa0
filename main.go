package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"

	"food-delivery/courier/channel"
	"food-delivery/courier/config"
	_ "food-delivery/courier/docs"
	"food-delivery/courier/events"
	"food-delivery/courier/geo"
	"food-delivery/courier/handlers"
	"food-delivery/courier/logger"
	"food-delivery/courier/restapi"
	"food-delivery/courier/session"
	"food-delivery/courier/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.New("courier-agent")
	defer log.Sync() //nolint:errcheck

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	rtstore := store.NewRedisStore(rdb, cfg.Telemetry.HistoryMaxEntries, log)

	var producer *events.Producer
	if cfg.Kafka.Enabled {
		producer, err = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Warn("kafka unavailable, event log disabled", zap.Error(err))
		}
	}

	backend := restapi.NewClient(cfg.Backend.BaseURL, cfg.Courier.Token, cfg.Backend.RequestTimeout, log)

	// No device feed here; the simulator walks from a fixed start.
	source := geo.NewSimulator(41.311, 69.240, cfg.Telemetry.GeoSampleInterval)

	coord := session.New(session.Config{
		CourierID: cfg.Courier.ID,
		Credentials: channel.Credentials{
			CourierID: cfg.Courier.ID,
			Token:     cfg.Courier.Token,
			Secret:    cfg.JWT.SecretKey,
		},
		ChannelURL:      cfg.Dispatch.ChannelURL,
		AcceptTimeout:   cfg.Dispatch.AcceptTimeout,
		DefaultInterval: cfg.Telemetry.DefaultInterval,
		ProximityMeters: cfg.Telemetry.ProximityMeters,
		CacheTTL:        cfg.Cache.TTL,
	}, backend, rtstore, source, session.NewLogNotifier(log), producer, log)
	coord.Start()

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	app.Get("/swagger/*", swagger.HandlerDefault)
	handlers.NewServer(coord, log).Register(app)

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()
	log.Info("courier agent started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	coord.Close()
	source.Stop()
	_ = app.Shutdown()
	_ = rdb.Close()
}
