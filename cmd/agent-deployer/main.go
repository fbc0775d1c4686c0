package main

import (
	"os"

	"github.com/telco-platform/agent-deployer/internal/cli"
)

var version = "devel"

func main() {
	cli.Run(version, os.Args)
}
