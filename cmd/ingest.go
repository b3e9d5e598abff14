package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"docqa/src/core/ingest"
	"docqa/src/infrastructure/integrations/ollama"
	"docqa/src/storage/minioctrl"
	"docqa/src/storage/postgres/chunkctrl"
	"docqa/src/storage/postgres/resourcectrl"
	"docqa/src/storage/weaviate"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a local document into the index",
	Long: `Ingest reads a local text file, stores the original in object storage,
then splits, embeds and indexes it synchronously. Use the server upload
endpoint instead when a background worker is running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(content) == 0 {
			return fmt.Errorf("%s is empty", path)
		}

		ctx := context.Background()

		// Initialize PostgreSQL connection
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			viper.GetString("postgres.host"),
			viper.GetString("postgres.user"),
			viper.GetString("postgres.password"),
			viper.GetString("postgres.db"),
			viper.GetString("postgres.port"))
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		// Initialize services
		resourceService, err := resourcectrl.NewResourceService(db)
		if err != nil {
			return fmt.Errorf("failed to create resource service: %w", err)
		}

		chunkService, err := chunkctrl.NewChunkService(db)
		if err != nil {
			return fmt.Errorf("failed to create chunk service: %w", err)
		}

		minioService, err := minioctrl.NewMinioService(
			viper.GetString("minio.endpoint"),
			viper.GetString("minio.access_key"),
			viper.GetString("minio.secret_key"),
			viper.GetBool("minio.use_ssl"),
		)
		if err != nil {
			return fmt.Errorf("failed to create minio service: %w", err)
		}

		// Store the original document
		filename := filepath.Base(path)
		if err := minioService.EnsureBucketExists(ctx, minioctrl.DocumentsBucket); err != nil {
			return err
		}
		objectURL := minioctrl.DocumentsBucket + "/" + filename
		if err := minioService.PutObject(ctx, minioctrl.DocumentsBucket, filename, content); err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}

		resource, err := resourceService.Create(ctx, filename, objectURL)
		if err != nil {
			return fmt.Errorf("failed to record resource: %w", err)
		}

		// Create ollama client and provider
		httpClient := &http.Client{Timeout: 120 * time.Second}
		ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), httpClient)
		provider := ollama.NewProvider(
			ollamaClient,
			viper.GetString("ollama.generate_model"),
			viper.GetString("ollama.embed_model"),
		)

		// Create weaviate client
		wc := weaviateClient.New(weaviateClient.Config{
			Host:   viper.GetString("weaviate.url"),
			Scheme: "http",
		})

		ingestService := ingest.NewService(
			provider,
			provider,
			weaviate.NewSDK(wc),
			viper.GetString("weaviate.class"),
			ingest.WithChunkSize(viper.GetInt("engine.chunk_size")),
			ingest.WithChunkOverlap(viper.GetInt("engine.chunk_overlap")),
			ingest.WithCatalog(resourceService, chunkService),
		)

		var bar *progressbar.ProgressBar
		count, err := ingestService.IngestText(ctx, resource.ID, string(content), func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "embedding")
			}
			bar.Add(1)
		})
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		fmt.Printf("Ingested %s as resource %d (%d chunks)\n", filename, resource.ID, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
