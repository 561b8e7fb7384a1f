package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Memora/backend/go/internal/collection_service/analyzer"
	"Memora/backend/go/internal/collection_service/api"
	"Memora/backend/go/internal/collection_service/publisher"
	"Memora/backend/go/internal/collection_service/service"
	"Memora/backend/go/internal/collection_service/store"
	"Memora/backend/go/internal/config"
	"Memora/backend/go/internal/database/kafka"
	"Memora/backend/go/internal/database/milvus"
	"Memora/backend/go/internal/database/minio"
	"Memora/backend/go/internal/database/mysql"
	memredis "Memora/backend/go/internal/database/redis"
	"Memora/backend/go/internal/embedding"
	"Memora/backend/go/internal/llm"
	"Memora/backend/go/internal/rag/embeddings"
	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/llms"
	"Memora/backend/go/internal/rag/loaders"
	"Memora/backend/go/internal/rag/pipeline"
	"Memora/backend/go/internal/rag/splitters"
	"Memora/backend/go/internal/rag/storages/vectorstore"
	memhttp "Memora/backend/go/pkg/http"
	"Memora/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

const serviceName = "collection_service"

func main() {
	configPath := flag.String("config", envOr("MEMORA_CONFIG", "config/config.yaml"), "path to the YAML configuration file")
	flag.Parse()

	// 1. 配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 日志
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New(serviceName, "", "")
	appLogger.Info(fmt.Sprintf("Starting %s %s (%s)", cfg.App.Name, cfg.App.Version, cfg.App.Environment))
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	checks := map[string]api.HealthCheck{}

	// 3. 存储
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to connect to MySQL: %v", err))
	}
	checks["mysql"] = mysql.HealthCheck
	collectionStore := store.NewStore(db)

	embedder, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create embedding model: %v", err))
	}
	embedModel := embeddings.NewAdapter(embedder)

	var kb interfaces.KnowledgeBase
	var milvusClient *milvus.MilvusClient
	if cfg.Databases.Milvus.Address != "" {
		milvusClient, err = milvus.GetClient(ctx, &cfg.Databases.Milvus)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to connect to Milvus: %v", err))
		}
		checks["milvus"] = milvusClient.HealthCheck
		kb, err = vectorstore.NewMilvusStore(milvusClient, embedModel, cfg.Embedding.Dimension, appLogger)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
	} else {
		appLogger.Warn("Milvus address not configured, knowledge bases are kept in memory")
		kb = vectorstore.NewMemoryStore(embedModel)
	}

	var guard store.URLGuard = store.NewMemoryURLGuard()
	if cfg.Databases.Redis.Address != "" {
		rdb, err := memredis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
		}
		checks["redis"] = memredis.HealthCheck
		guard = store.NewRedisURLGuard(rdb, config.Duration(cfg.Databases.Redis.LockTTL, 5*time.Minute))
	}

	var snapshots store.SnapshotStore = store.NopSnapshotStore{}
	if cfg.Databases.MinIO.Endpoint != "" {
		mc, err := minio.GetClient(ctx, &cfg.Databases.MinIO)
		if err != nil {
			appLogger.Warn(fmt.Sprintf("MinIO unavailable, content snapshots disabled: %v", err))
		} else {
			snapshots = store.NewMinioSnapshotStore(mc, cfg.Databases.MinIO.Bucket)
		}
	}

	var events publisher.Publisher = publisher.Nop{}
	var kafkaClient *kafka.KafkaClient
	if len(cfg.Databases.Kafka.Brokers) > 0 {
		kafkaClient, err = kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.Warn(fmt.Sprintf("Kafka unavailable, domain events disabled: %v", err))
		} else {
			events = publisher.NewKafkaPublisher(kafkaClient.Writer)
		}
	}

	// 4. 模型
	rawLLM, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create LLM client: %v", err))
	}
	breakerCfg := cfg.Middleware.CircuitBreaker
	chatLLM := llm.NewGuarded(rawLLM, llm.BreakerSettings{
		Name:             cfg.LLM.Provider,
		Timeout:          config.Duration(cfg.LLM.Timeout, 2*time.Minute),
		FailureThreshold: breakerCfg.FailureThreshold,
		HalfOpenRequests: breakerCfg.SuccessThreshold,
		OpenTimeout:      config.Duration(breakerCfg.Timeout, 30*time.Second),
	})

	// 5. 流水线与服务
	p := cfg.Pipeline
	splitter, err := splitters.NewRecursiveSplitter(p.ChunkSize, p.ChunkOverlap)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	indexing := pipeline.NewIndexingPipeline(splitter, kb, p.IndexWorkers, appLogger)
	indexer, err := service.NewIndexer(p.IndexWorkers, config.Duration(p.IndexTimeout, 10*time.Minute), indexing, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	contentAnalyzer := analyzer.New(chatLLM, analyzer.Options{MaxContentRunes: p.MaxContentRunes, Language: p.OutputLanguage}, appLogger)
	ingestor := service.NewIngestor(service.IngestorDeps{
		Collections: collectionStore,
		Categories:  collectionStore,
		Fetcher:     loaders.NewWebLoader(config.Duration(p.FetchTimeout, 10*time.Second), p.MaxFetchBytes),
		Analyzer:    contentAnalyzer,
		Resolver:    service.NewCategoryResolver(collectionStore),
		Indexer:     indexer,
		Snapshots:   snapshots,
		Guard:       guard,
		Publisher:   events,
		Log:         appLogger,
	}, p.PreviewLength)
	knowledgeBases := service.NewKnowledgeBaseService(service.KnowledgeBaseDeps{
		Categories:  collectionStore,
		Collections: collectionStore,
		KB:          kb,
		Indexer:     indexer,
		Indexing:    indexing,
		Retrieval:   pipeline.NewRetrievalPipeline(kb, appLogger),
		QA:          pipeline.NewQAPipeline(llms.NewAdapter(chatLLM), appLogger),
		Publisher:   events,
		TopK:        p.QueryTopK,
		Log:         appLogger,
	})

	// 6. HTTP
	search := service.NewSearchService(collectionStore, collectionStore, contentAnalyzer, appLogger)
	handler := api.NewHandler(ingestor, service.NewCollectionService(collectionStore), knowledgeBases, search, checks, appLogger)
	router := api.SetupRouter(handler, cfg.Auth.JwtSecret, appLogger)
	server, err := memhttp.NewServer(cfg, memhttp.WithHandler(router), memhttp.WithLogger(appLogger))
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(fmt.Sprintf("Failed to serve HTTP: %v", err))
		}
	}()

	// 7. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownTimeout := config.Duration(cfg.Server.ShutdownTimeout, 15*time.Second)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(fmt.Sprintf("HTTP server shutdown: %v", err))
	}
	if err := indexer.Close(shutdownTimeout); err != nil {
		appLogger.Error(fmt.Sprintf("Indexer shutdown: %v", err))
	}
	if kafkaClient != nil {
		if err := kafkaClient.Close(); err != nil {
			appLogger.Error(fmt.Sprintf("Kafka close: %v", err))
		}
	}
	if milvusClient != nil {
		milvusClient.Close()
	}
	if err := memredis.Close(); err != nil {
		appLogger.Error(fmt.Sprintf("Redis close: %v", err))
	}
	if err := mysql.Close(); err != nil {
		appLogger.Error(fmt.Sprintf("MySQL close: %v", err))
	}
	appLogger.Info("Server gracefully stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
