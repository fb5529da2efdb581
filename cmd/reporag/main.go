package main

import "reporag/internal/cli"

func main() {
	cli.Execute()
}
