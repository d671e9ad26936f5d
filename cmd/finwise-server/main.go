// Command finwise-server runs the finwise JSON API. It is equivalent to
// "finwise serve" and accepts the same flags.
package main

import "finwise/internal/cli"

func main() {
	cli.ExecuteCommand("serve")
}
