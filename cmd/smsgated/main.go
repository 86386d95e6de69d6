// Package main is the entry point for the smsgated CLI.
package main

import (
	"os"

	"github.com/supermarsx/smsgate-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
