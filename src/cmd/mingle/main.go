package main

import (
	cmd "github.com/mosaicnetworks/mingle/src/cmd/mingle/commands"
)

func main() {
	cmd.Execute()
}
