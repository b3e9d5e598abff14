package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"

	"docqa/src/core/combine"
	"docqa/src/core/retrieval"
	"docqa/src/infrastructure/integrations/ollama"
	"docqa/src/storage/weaviate"
)

var (
	askStrategy string
	askTopK     int
	askSteps    bool
	askSources  bool
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Long: `Ask retrieves the fragments most relevant to the question from the
vector index and combines them into one answer with the chosen strategy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := args[0]

		strategy, err := combine.ParseStrategy(askStrategy)
		if err != nil {
			return err
		}

		ctx := context.Background()

		// Create ollama client and provider
		httpClient := &http.Client{Timeout: 120 * time.Second}
		ollamaClient := ollama.NewClient(viper.GetString("ollama.url"), httpClient)
		provider := ollama.NewProvider(
			ollamaClient,
			viper.GetString("ollama.generate_model"),
			viper.GetString("ollama.embed_model"),
			ollama.WithMaxInputTokens(viper.GetInt("ollama.max_input_tokens")),
		)

		// Create weaviate client
		wc := weaviateClient.New(weaviateClient.Config{
			Host:   viper.GetString("weaviate.url"),
			Scheme: "http",
		})
		store := retrieval.NewStore(weaviate.NewSDK(wc), provider, viper.GetString("weaviate.class"))

		fragments, err := store.Retrieve(ctx, question, askTopK)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		if len(fragments) == 0 {
			return fmt.Errorf("no indexed fragments match the question")
		}

		var opts []combine.RunOption
		if askSteps {
			opts = append(opts, combine.WithIntermediateSteps())
		}
		if askSources {
			opts = append(opts, combine.WithSources())
		}

		engine := combine.NewEngine(provider)
		result, err := engine.RunQuery(ctx, strategy, fragments, question, opts...)
		if err != nil {
			return err
		}

		if askSteps {
			fmt.Println("Intermediate steps:")
			fmt.Println("-------------------")
			for i, step := range result.IntermediateSteps {
				fmt.Printf("[%d] %s\n", i, step.Text)
			}
			fmt.Println("-------------------")
		}

		fmt.Println(result.FinalAnswer.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askStrategy, "strategy", "s", "stuff", "Combination strategy (stuff, map_reduce, refine, map_rerank)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 4, "Number of fragments to retrieve")
	askCmd.Flags().BoolVar(&askSteps, "steps", false, "Print intermediate per-fragment answers")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "Append the sources the answer drew on")
}
