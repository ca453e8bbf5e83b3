package main

import "github.com/agentic-research/fleetcache/cmd"

func main() {
	cmd.Execute()
}
