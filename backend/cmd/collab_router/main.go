package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"collabRouter/backend/internal/cache"
	"collabRouter/backend/internal/collab"
	"collabRouter/backend/internal/httpapi/handlers"
	"collabRouter/backend/internal/httpapi/middleware"
	"collabRouter/backend/internal/session"
	"collabRouter/backend/internal/store"
	"collabRouter/backend/internal/ws"
)

type RouterConfig struct {
	Running struct {
		Port int `mapstructure:"Port"`
	} `mapstructure:"Running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"Mysql"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"Redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"Kafka"`
	Auth struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"Auth"`
	Collab struct {
		FetchTimeoutMs int `mapstructure:"fetchTimeoutMs"`
	} `mapstructure:"Collab"`
}

func initConfig() (*RouterConfig, error) {
	cfg := &RouterConfig{}
	v := viper.New()
	v.SetConfigName("routerConfig")
	v.SetConfigType("yaml")
	// Works when started from the repo root or from backend/.
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: %+v", cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis failed: %v", err)
	}
	defer rdb.Close()

	db, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("open mysql failed: %v", err)
	}

	kafkaCfg := sarama.NewConfig()
	// SyncProducer requires Return.Successes.
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("connect kafka failed: %v", err)
	}
	defer producer.Close()

	kafkaSem := collab.NewSemaphoreControl()
	submitSem := collab.NewSemaphoreControl()

	dispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		collab.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	fetchTimeout := time.Duration(cfg.Collab.FetchTimeoutMs) * time.Millisecond

	presence := cache.NewRedisPresence(rdb)
	docStore := store.NewDocumentStore(db)
	registry := session.NewRegistry(session.RegistryOptions{
		FetchTimeout: fetchTimeout,
		Dispatcher:   dispatcher,
	})
	manager := ws.NewManager(registry, presence, docStore.FetchContent, submitSem)
	docHandler := handlers.NewDocumentHandler(docStore, registry)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// CORS is off by default: behind the gateway a second CORS layer produces
	// duplicate Access-Control-Allow-Origin values and browsers reject them.
	if os.Getenv("COLLAB_ENABLE_CORS") == "1" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	collabGroup := r.Group("/collab")
	collabGroup.Use(middleware.AuthMiddleware(cfg.Auth.Path))
	collabGroup.GET("/ws", manager.WebSocketConnect)
	collabGroup.POST("/docs", docHandler.CreateDocument)
	collabGroup.GET("/docs/:title", docHandler.GetDocument)
	collabGroup.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	port := cfg.Running.Port
	_ = r.Run(fmt.Sprintf(":%d", port))
}
