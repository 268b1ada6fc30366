package main

import "github.com/docseal/docseal/internal/cli"

func main() {
	cli.Execute()
}
