// Command quotebot posts queued items on a daily schedule and manages the
// item queue.
//
// Usage:
//
//	quotebot [--config PATH] <command> [flags]
//
// Commands:
//
//	run       run the posting daemon until SIGINT/SIGTERM
//	db        init, import, add, list and posts
//	shuffle   shuffle the lines of a raw item file in place
//	schedule  preview the schedule the daemon would generate
package main

import (
	"fmt"
	"os"
)

// version is set with -ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
