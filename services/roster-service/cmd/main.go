package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
