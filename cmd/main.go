/*
Package main is the entry point for the Xalvion chat client.

All behavior lives in the cli package; see `xalvion --help` for the available commands.
*/
package main

import "xalvion/internal/cli"

func main() {
	cli.Execute()
}
