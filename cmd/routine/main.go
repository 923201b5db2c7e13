package main

import "routine/internal/cli"

func main() {
	cli.Execute()
}
