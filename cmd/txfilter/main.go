package main

import "txfilter/internal/cli"

func main() {
	cli.Execute()
}
