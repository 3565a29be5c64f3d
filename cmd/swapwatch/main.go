package main

import "swapwatch/internal/cli"

func main() {
	cli.Execute()
}
