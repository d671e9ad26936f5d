// Command finwise imports, summarizes and exports a personal ledger.
package main

import "finwise/internal/cli"

func main() {
	cli.Execute()
}
