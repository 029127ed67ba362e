package main

import (
	"os"

	"github.com/ompatel2019/toohak/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
