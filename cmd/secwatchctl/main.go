// secwatchctl is the operator CLI for a secwatch deployment.
//
// Usage:
//
//	secwatchctl stats --config config.yaml
//	secwatchctl stats --json
//	secwatchctl token --user-id 1 --username ops --role admin --ttl-hours 8
//	secwatchctl logs cleanup --days 30
package main

import (
	"fmt"
	"os"

	"github.com/huangang/secwatch/cmd/secwatchctl/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
