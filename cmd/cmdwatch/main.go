package main

import "github.com/vietddude/cmdwatch/internal/cli"

func main() {
	cli.Execute()
}
