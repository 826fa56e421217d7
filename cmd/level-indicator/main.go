package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "level-indicator",
		Short: "Rank the top traded price levels across a rolling window of bars",
		Long: `level-indicator ranks per-bar price levels by volume, buy aggression or sell
aggression, sums them across the trailing bars-to-use window and keeps the top K
inside a rolling lookback window.

serve replays a recorded bar history and pushes ranked levels over a websocket.
top runs the same ranking offline and prints (or exports) the result.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newTopCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
