package main

import (
	"os"

	"voice-rating/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
