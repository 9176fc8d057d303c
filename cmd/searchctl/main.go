package main

import "github.com/searchapi-console/internal/cli"

func main() {
	cli.Execute()
}
