package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jp-address-parser/app/config"
	"github.com/jp-address-parser/app/controllers"
	"github.com/jp-address-parser/app/services"
	"github.com/jp-address-parser/routes"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	loadConfig()

	logger := initLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	parserCfg, err := config.Load(viper.GetString("parser.config"))
	if err != nil {
		logger.Fatal("failed to load parser config", zap.Error(err))
	}

	pipeline, err := services.BuildPipeline(ctx, parserCfg, logger)
	if err != nil {
		logger.Fatal("failed to build parser pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	cacheService, closeCache := initCache(ctx, pipeline.Parser.RulesVersion(), logger)
	defer closeCache()

	addressService := services.NewAddressService(pipeline.Parser, cacheService, parserCfg.Workers,
		viper.GetDuration("jobs.retention"), logger)
	adminService := services.NewAdminService(addressService, cacheService, pipeline.Lookup,
		pipeline.Importer, pipeline.Source, logger)

	if viper.GetString("app.env") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router,
		controllers.NewAddressController(addressService, logger),
		controllers.NewAdminController(adminService, addressService, logger),
		logger)

	server := &http.Server{
		Addr:              ":" + viper.GetString("app.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("address parser service starting",
			zap.String("port", viper.GetString("app.port")),
			zap.String("gazetteer_source", pipeline.Source))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	addressService.Shutdown()
}

func loadConfig() {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("parser.config", "")
	viper.SetDefault("mongo.url", "")
	viper.SetDefault("mongo.database", "jp_address_parser")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("cache.l1_size", 10000)
	viper.SetDefault("cache.ttl", 24*time.Hour)
	viper.SetDefault("jobs.retention", time.Hour)

	// APP_PORT, MONGO_URL, REDIS_URL, ...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("no config file loaded: %v", err)
	}
}

func initLogger() *zap.Logger {
	var cfg zap.Config
	if viper.GetString("app.env") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatal("cannot initialize logger: ", err)
	}
	return logger
}

// initCache picks Redis and/or MongoDB when configured, else an in-memory
// cache.
func initCache(ctx context.Context, rulesVersion string, logger *zap.Logger) (services.ICacheService, func()) {
	ttl := viper.GetDuration("cache.ttl")
	l1Size := viper.GetInt("cache.l1_size")

	var redisCache *services.RedisCacheService
	if url := viper.GetString("redis.url"); url != "" {
		c, err := services.NewRedisCacheService(url, ttl, logger)
		if err != nil {
			logger.Fatal("failed to initialize redis cache", zap.Error(err))
		}
		redisCache = c
	}

	var (
		mongoCache  *services.MongoCacheService
		mongoClient *mongo.Client
	)
	if url := viper.GetString("mongo.url"); url != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
		if err != nil {
			logger.Fatal("failed to connect to mongodb", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			logger.Fatal("failed to ping mongodb", zap.Error(err))
		}
		mongoClient = client

		mongoCache, err = services.NewMongoCacheService(client.Database(viper.GetString("mongo.database")), l1Size, logger)
		if err != nil {
			logger.Fatal("failed to initialize mongodb cache", zap.Error(err))
		}
		if _, err := mongoCache.WarmUp(ctx, rulesVersion, l1Size/2); err != nil {
			logger.Warn("cache warm up failed", zap.Error(err))
		}
	}

	disconnect := func() {
		if mongoClient != nil {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logger.Error("error disconnecting mongodb", zap.Error(err))
			}
		}
	}

	var cache services.ICacheService
	switch {
	case redisCache != nil && mongoCache != nil:
		cache = services.NewHybridCacheService(redisCache, mongoCache, logger)
	case redisCache != nil:
		cache = redisCache
	case mongoCache != nil:
		cache = mongoCache
	default:
		memory := services.NewCacheService(ttl)
		memory.StartCleanupWorker(ctx, 10*time.Minute)
		cache = memory
	}
	logger.Info("parse cache ready", zap.String("backend", cacheBackend(redisCache != nil, mongoCache != nil)))

	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.Warn("error closing cache", zap.Error(err))
		}
		disconnect()
	}
}

func cacheBackend(hasRedis, hasMongo bool) string {
	switch {
	case hasRedis && hasMongo:
		return "redis+mongodb"
	case hasRedis:
		return "redis"
	case hasMongo:
		return "mongodb"
	}
	return "memory"
}
