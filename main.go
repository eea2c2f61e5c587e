package main

import (
	"github.com/0glabs/0g-wallet-rpc/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cmd.Execute()
}
