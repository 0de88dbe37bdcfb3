package main

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/example/receipt-console/internal/cli"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	if err := cli.Root(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
