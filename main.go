package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
