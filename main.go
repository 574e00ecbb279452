package main

import "github.com/pixelprecision/reticstudio/cmd"

func main() {
	cmd.Execute()
}
