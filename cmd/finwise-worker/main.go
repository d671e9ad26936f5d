// Command finwise-worker consumes ledger change notifications. It is
// equivalent to "finwise worker" and accepts the same flags.
package main

import "finwise/internal/cli"

func main() {
	cli.ExecuteCommand("worker")
}
