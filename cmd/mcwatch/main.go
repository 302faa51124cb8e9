package main

import "mcwatch/internal/cli"

func main() {
	cli.Execute()
}
