package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ppiankov/snpscope/internal/cli"
	"github.com/ppiankov/snpscope/internal/metrics"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	metrics.RegisterSourceMetrics()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
