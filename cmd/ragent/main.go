package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/yaoapp/kun/log"
	"golang.org/x/sync/errgroup"

	"github.com/ragent-io/ragent/agent"
	"github.com/ragent-io/ragent/chat"
	"github.com/ragent-io/ragent/chunking"
	"github.com/ragent-io/ragent/config"
	"github.com/ragent-io/ragent/document"
	"github.com/ragent-io/ragent/embedding"
	"github.com/ragent-io/ragent/llm"
	"github.com/ragent-io/ragent/pdf"
	"github.com/ragent-io/ragent/retrieval"
	"github.com/ragent-io/ragent/server"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/store"
	"github.com/ragent-io/ragent/vision"
	"github.com/ragent-io/ragent/websearch"
)

func main() {
	if err := run(); err != nil {
		color.Red("[Main] %s", err.Error())
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if settings.Debug {
		log.SetLevel(log.TraceLevel)
	}

	color.Cyan("%s v%s", settings.AppName, settings.AppVersion)
	color.Green("[Main] api %s, models %s", settings.API.Addr(), settings.Ollama.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(ctx, storage.Options{
		DatabaseURL: settings.Database.URL(),
		PoolSize:    settings.Database.PoolSize,
		Dimension:   settings.Ollama.EmbeddingDimension,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	kv, err := store.New(store.Options{
		Backend:  settings.Cache.Backend,
		Addr:     settings.Redis.Addr(),
		Password: settings.Redis.Password,
		DB:       settings.Redis.DB,
		Prefix:   "ragent:",
		Dir:      settings.Cache.Dir,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	cache := store.NewCache(kv, store.CacheOptions{
		ResponseEnabled: settings.Performance.ResponseCacheEnabled,
		ResponseTTL:     settings.Performance.ResponseCacheTTL(),
		HistoryTTL:      settings.Redis.ChatHistoryTTL(),
		ProcessingTTL:   settings.Redis.ProcessingJobTTL(),
	})

	models, err := llm.New(llm.Options{
		BaseURL:            settings.Ollama.BaseURL,
		TextModel:          settings.Ollama.TextModel,
		VisionModel:        settings.Ollama.VisionModel,
		EmbeddingModel:     settings.Ollama.EmbeddingModel,
		EmbeddingDimension: settings.Ollama.EmbeddingDimension,
		KeepAlive:          settings.Ollama.KeepAlive,
		Temperature:        settings.Ollama.Temperature,
		TopP:               settings.Ollama.TopP,
		MaxTokens:          settings.Ollama.MaxTokens,
		GenerationTimeout:  time.Duration(settings.Ollama.GenerationTimeout) * time.Second,
		EmbeddingTimeout:   time.Duration(settings.Ollama.EmbeddingTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("configure models: %w", err)
	}

	embedder, err := embedding.New(embedding.Options{
		Backend:   models,
		BatchSize: settings.Performance.EmbeddingBatchSize,
	})
	if err != nil {
		return fmt.Errorf("configure embedding: %w", err)
	}

	// With gating off every extracted image goes to the vision model.
	visionOptions := vision.Options{Backend: models}
	if !settings.Performance.VisionGatingEnabled {
		visionOptions.MinPixels = 1
	}
	describer, err := vision.New(visionOptions)
	if err != nil {
		return fmt.Errorf("configure vision: %w", err)
	}

	processor, err := document.NewProcessor(document.ProcessorOptions{
		Extractor: pdf.New(pdf.Options{}),
		Vision:    describer,
		Chunker: chunking.New(chunking.Options{
			Size:    settings.Document.ChunkSize,
			Overlap: settings.Document.ChunkOverlap,
		}),
		Embedder:   embedder,
		Summarizer: models,
	})
	if err != nil {
		return fmt.Errorf("configure processor: %w", err)
	}

	documents, err := document.NewService(document.ServiceOptions{
		Storage:           db,
		Cache:             cache,
		Processor:         processor,
		UploadDir:         settings.Document.UploadDir,
		MaxUploadSize:     settings.Document.MaxUploadSizeBytes(),
		AllowedExtensions: settings.Document.AllowedExtensions,
	})
	if err != nil {
		return fmt.Errorf("configure documents: %w", err)
	}
	defer documents.Close()

	retriever, err := retrieval.New(retrieval.Options{
		DB:            db.Pool(),
		Embedder:      embedder,
		DefaultTopK:   settings.Search.DefaultTopK,
		MaxTopK:       settings.Search.MaxTopK,
		MinSimilarity: settings.Search.MinSimilarity,
		VectorWeight:  settings.Search.VectorWeight,
		KeywordWeight: settings.Search.KeywordWeight,
	})
	if err != nil {
		return fmt.Errorf("configure retrieval: %w", err)
	}

	chats, err := chat.New(chat.Options{Storage: db, Cache: cache, Titler: models})
	if err != nil {
		return fmt.Errorf("configure chats: %w", err)
	}

	history := chat.NewHistoryManager(chat.HistoryOptions{
		MaxTokens:          settings.Performance.MaxHistoryTokens,
		SummarizeThreshold: settings.Performance.SummarizeAfterMessages,
		Summarizer:         models,
	})

	searcher := websearch.New(websearch.Options{
		Timeout:    time.Duration(settings.Agent.WebSearchTimeout) * time.Second,
		MaxResults: settings.Agent.WebSearchMaxResults,
	})

	registry := agent.NewRegistry()
	tools := []agent.Tool{
		agent.NewRAGSearchTool(retriever),
		agent.NewWebSearchTool(searcher),
		agent.NewFileReaderTool(db),
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}

	orchestrator, err := agent.New(agent.Options{
		Model:         models,
		Registry:      registry,
		History:       history,
		Cache:         cache,
		MaxIterations: settings.Agent.MaxIterations,
	})
	if err != nil {
		return fmt.Errorf("configure agent: %w", err)
	}

	maintenance, err := document.NewMaintenance(db, document.MaintenanceOptions{})
	if err != nil {
		return fmt.Errorf("configure maintenance: %w", err)
	}
	if err := maintenance.Start(); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}
	defer maintenance.Stop()

	srv := server.New(server.Options{
		Host:        settings.API.Host,
		Port:        settings.API.Port,
		CORSOrigins: settings.API.CORSOrigins,
		AppName:     settings.AppName,
		AppVersion:  settings.AppVersion,
		Debug:       settings.Debug,
	}, server.Dependencies{
		Documents: documents,
		Retrieval: retriever,
		Chats:     chats,
		Agent:     orchestrator,
		DB:        db,
		KV:        kv,
		Models:    models,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return srv.Run(groupCtx) })

	if dir := settings.Document.WatchDir; dir != "" {
		watcher, err := document.NewWatcher(documents, document.WatcherOptions{
			Dir:        dir,
			Extensions: settings.Document.AllowedExtensions,
		})
		if err != nil {
			return fmt.Errorf("configure watcher: %w", err)
		}
		group.Go(func() error { return watcher.Run(groupCtx) })
	}

	return group.Wait()
}
