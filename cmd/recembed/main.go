package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/shopmind/recembed/internal/config"
	"github.com/shopmind/recembed/internal/dataset"
	"github.com/shopmind/recembed/internal/datastore"
	"github.com/shopmind/recembed/internal/embed"
	"github.com/shopmind/recembed/internal/handler"
	"github.com/shopmind/recembed/internal/job"
	"github.com/shopmind/recembed/internal/middleware"
	"github.com/shopmind/recembed/internal/model"
	"github.com/shopmind/recembed/internal/pkg/jwt"
	"github.com/shopmind/recembed/internal/platform"
	"github.com/shopmind/recembed/internal/repo"
	"github.com/shopmind/recembed/internal/schedule"
	"github.com/shopmind/recembed/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "recembed",
		Short: "product recommendation service on purchase-pair embeddings",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(newRunCmd(&configPath))
	rootCmd.AddCommand(newPrepareCmd(&configPath))
	rootCmd.AddCommand(newTrainCmd(&configPath))
	rootCmd.AddCommand(newRecommendCmd(&configPath))
	rootCmd.AddCommand(newTokenCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := repo.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.ApplyMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

func buildEmbedder(cfg *config.Config) (embed.IEmbedder, embed.ITextEmbedder, error) {
	embedder, err := embed.NewEmbedder(cfg.Embedder.Provider, cfg.Embedder.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("init embedder: %w", err)
	}
	if cfg.Embedder.CacheSize > 0 {
		embedder = embed.WrapLRUCache(
			embedder,
			cfg.Embedder.CacheSize,
			time.Duration(cfg.Embedder.CacheTTLMins)*time.Minute,
		)
	}
	var textEmbedder embed.ITextEmbedder
	if cfg.Gemini.APIKey != "" {
		textEmbedder = embed.NewGeminiTextEmbedder(embed.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
	}
	return embedder, textEmbedder, nil
}

func loadPurchasesFile(path string) ([]model.Purchase, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open purchases csv: %w", err)
	}
	defer file.Close()
	return dataset.LoadPurchases(file)
}

func loadCatalogFile(path string) ([]model.Product, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer file.Close()
	return dataset.LoadCatalog(file)
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the recommendation server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return runServer(cfg, db)
		},
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("data_store", cfg.DataStore.Type),
		zap.String("embedder", cfg.Embedder.Provider),
	)

	productRepo := repo.NewProductRepo(db)
	embeddingRepo := repo.NewEmbeddingRepo(db)
	runRepo := repo.NewTrainingRunRepo(db)

	store, err := datastore.New(cfg.DataStore)
	if err != nil {
		return fmt.Errorf("init data store: %w", err)
	}
	platformClient, err := platform.NewClient(platform.ClientConfig{
		BaseURL:   cfg.Platform.BaseURL,
		AuthToken: cfg.Platform.AuthToken,
	})
	if err != nil {
		return fmt.Errorf("init platform client: %w", err)
	}
	embedder, textEmbedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	recommendService := service.NewRecommendService(embeddingRepo, productRepo, cfg.Recommend.MaxCandidates)
	syncService := service.NewSyncService(embeddingRepo, productRepo, embedder, textEmbedder, cfg.Embedder.ModelVersion)
	trainingService := service.NewTrainingService(platformClient, store, runRepo, syncService)

	deps := handler.RouterDeps{
		Recommend: handler.NewRecommendHandler(recommendService, cfg.Recommend.DefaultK, cfg.Recommend.MaxK),
		Catalog:   handler.NewCatalogHandler(productRepo),
		Admin:     handler.NewAdminHandler(trainingService, syncService, store),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingResyncJob(syncService, cfg.Schedule.ResyncBatch), cfg.Schedule.ResyncSpec); err != nil {
		return err
	}
	reaperTTL := time.Duration(cfg.Schedule.EndpointTTLHours) * time.Hour
	if err := scheduler.AddJob(job.NewEndpointReaperJob(trainingService, reaperTTL), cfg.Schedule.ReaperSpec); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func newPrepareCmd(configPath *string) *cobra.Command {
	var purchasesPath, catalogPath, outPrefix string
	var negPerPositive int
	var trainFrac, valFrac float64
	var seed int64

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "build labeled pair channels from purchase and catalog CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			purchases, err := loadPurchasesFile(purchasesPath)
			if err != nil {
				return err
			}
			catalog, err := loadCatalogFile(catalogPath)
			if err != nil {
				return err
			}
			pairs, err := dataset.BuildPairs(purchases, catalog, negPerPositive, seed)
			if err != nil {
				return err
			}
			split, err := dataset.Split(pairs, trainFrac, valFrac, seed)
			if err != nil {
				return err
			}

			store, err := datastore.New(cfg.DataStore)
			if err != nil {
				return fmt.Errorf("init data store: %w", err)
			}
			ctx := cmd.Context()
			channels := []struct {
				name    string
				samples []model.PairSample
			}{
				{"train", split.Train},
				{"validation", split.Val},
				{"test", split.Test},
			}
			for _, channel := range channels {
				key := fmt.Sprintf("%s/%s.jsonl", outPrefix, channel.name)
				var buf bytes.Buffer
				if err := dataset.WriteJSONLines(&buf, channel.samples); err != nil {
					return err
				}
				if err := store.Save(ctx, key, &buf); err != nil {
					return err
				}
				fmt.Printf("%s: %d samples -> %s\n", channel.name, len(channel.samples), store.URI(key))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&purchasesPath, "purchases", "", "purchase history CSV")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "product catalog CSV")
	cmd.Flags().StringVar(&outPrefix, "out", "prepared", "datastore key prefix for the channels")
	cmd.Flags().IntVar(&negPerPositive, "neg", 1, "negative samples per positive")
	cmd.Flags().Float64Var(&trainFrac, "train-frac", 0.8, "training fraction")
	cmd.Flags().Float64Var(&valFrac, "val-frac", 0.1, "validation fraction")
	cmd.Flags().Int64Var(&seed, "seed", 1, "sampling seed")
	_ = cmd.MarkFlagRequired("purchases")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func newTrainCmd(configPath *string) *cobra.Command {
	var purchasesPath, catalogPath string
	var negPerPositive int
	var trainFrac, valFrac float64
	var seed int64
	var deploy bool
	var encDim, epochs int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "submit a training job and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			purchases, err := loadPurchasesFile(purchasesPath)
			if err != nil {
				return err
			}
			catalog, err := loadCatalogFile(catalogPath)
			if err != nil {
				return err
			}
			store, err := datastore.New(cfg.DataStore)
			if err != nil {
				return fmt.Errorf("init data store: %w", err)
			}
			platformClient, err := platform.NewClient(platform.ClientConfig{
				BaseURL:   cfg.Platform.BaseURL,
				AuthToken: cfg.Platform.AuthToken,
			})
			if err != nil {
				return fmt.Errorf("init platform client: %w", err)
			}

			hp := platform.DefaultHyperParams()
			if encDim > 0 {
				hp.EncDim = encDim
			}
			if epochs > 0 {
				hp.Epochs = epochs
			}

			syncService := service.NewSyncService(
				repo.NewEmbeddingRepo(db),
				repo.NewProductRepo(db),
				nil, nil, cfg.Embedder.ModelVersion,
			)
			trainingService := service.NewTrainingService(platformClient, store, repo.NewTrainingRunRepo(db), syncService)
			run, err := trainingService.Train(cmd.Context(), service.TrainRequest{
				Purchases:      purchases,
				Catalog:        catalog,
				HyperParams:    hp,
				NegPerPositive: negPerPositive,
				TrainFrac:      trainFrac,
				ValFrac:        valFrac,
				Seed:           seed,
				Deploy:         deploy,
			})
			if run != nil {
				out, _ := json.MarshalIndent(run, "", "  ")
				fmt.Println(string(out))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&purchasesPath, "purchases", "", "purchase history CSV")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "product catalog CSV")
	cmd.Flags().IntVar(&negPerPositive, "neg", 1, "negative samples per positive")
	cmd.Flags().Float64Var(&trainFrac, "train-frac", 0.8, "training fraction")
	cmd.Flags().Float64Var(&valFrac, "val-frac", 0.1, "validation fraction")
	cmd.Flags().Int64Var(&seed, "seed", 1, "sampling seed")
	cmd.Flags().BoolVar(&deploy, "deploy", false, "deploy an inference endpoint after training")
	cmd.Flags().IntVar(&encDim, "enc-dim", 0, "embedding dimension override")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "epoch count override")
	_ = cmd.MarkFlagRequired("purchases")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func newRecommendCmd(configPath *string) *cobra.Command {
	var productID, candidates string
	var k int

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "one-shot nearest-neighbor query against stored embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			recommendService := service.NewRecommendService(
				repo.NewEmbeddingRepo(db),
				repo.NewProductRepo(db),
				cfg.Recommend.MaxCandidates,
			)
			ctx := cmd.Context()

			var results []service.Recommendation
			if candidates == "" {
				results, err = recommendService.SimilarToProduct(ctx, productID, k)
			} else {
				candidateIDs := strings.Split(candidates, ",")
				results, err = recommendService.TopWithin(ctx, productID, candidateIDs, k)
			}
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "query product id")
	cmd.Flags().StringVar(&candidates, "candidates", "", "comma-separated candidate ids (defaults to the whole catalog)")
	cmd.Flags().IntVar(&k, "k", 1, "number of neighbors")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func newTokenCmd(configPath *string) *cobra.Command {
	var subject, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "mint an admin bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(
				subject,
				role,
				[]byte(cfg.JWTSecret),
				time.Hour*time.Duration(cfg.JWTTTLHours),
			)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().StringVar(&role, "role", "admin", "token role")
	return cmd
}
