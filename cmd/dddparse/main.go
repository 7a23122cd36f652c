// Package main provides the dddparse CLI entry point.
package main

import (
	"context"
	"os"

	"github.com/caarlos0/env/v11"
)

func main() {
	os.Exit(run(context.Background(), os.Stdout, os.Stderr, os.Args[1:], env.ToMap(os.Environ())))
}
