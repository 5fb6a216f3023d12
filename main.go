package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/abhisek/lexiz/cmd"
)

func main() {
	// A .env next to the binary may carry API keys; it is optional.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
