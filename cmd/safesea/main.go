package main

import (
	"github.com/joho/godotenv"

	"github.com/couchcryptid/safesea/cmd/safesea/command"
)

func main() {
	// A missing .env is fine; the environment is the source of truth.
	_ = godotenv.Load()
	command.Execute()
}
