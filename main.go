// Command backoffice is the entry point for the Telegram back-office bot
// service: POS/finance/cloud synchronization, write-off/invoice/product
// request workflows, stop-list tracking, and the operator HTTP surface.
package main

import (
	"fmt"
	"os"

	"github.com/vostok-rest/backoffice/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
