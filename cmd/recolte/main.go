package main

import (
	"fmt"
	"os"

	"github.com/maruishi/recolte/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintln(os.Stderr, "recolte:", err)
		os.Exit(1)
	}
}
