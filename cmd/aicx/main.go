package main

import "github.com/kamal-haider/ai-consensus-cli/internal/cli"

func main() {
	cli.Execute()
}
