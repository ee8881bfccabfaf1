package main

import "github.com/vietddude/cqlguard/internal/cli"

func main() {
	cli.Execute()
}
