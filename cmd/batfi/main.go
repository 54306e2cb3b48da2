// Package main is the entrypoint for batfi, a battery runtime monitor.
package main

import "github.com/batfi/batfi/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
