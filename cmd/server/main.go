package main

import "proctorcam/internal/cli"

func main() {
	cli.Execute()
}
