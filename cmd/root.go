package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Question answering over your own documents",
	Long: `docqa ingests documents into a vector index and answers questions
over them with an LLM, combining the retrieved fragments with one of
four strategies: stuff, map_reduce, refine or map_rerank.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	settingDefaultConfig()
}
