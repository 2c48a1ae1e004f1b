package main

import (
	"os"

	"github.com/SmitUplenchwar2687/rrview/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
