package main

import "github.com/sergev/fluxclock/cmd"

func main() {
	cmd.Execute()
}
