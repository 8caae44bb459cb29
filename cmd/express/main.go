// Command express runs the signed telemetry feed server.
package main

import (
	"os"

	"github.com/orcfax/protocol-server/cmd/express/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
