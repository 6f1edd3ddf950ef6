package main

import "tldwatch/internal/cli"

func main() {
	cli.Execute()
}
