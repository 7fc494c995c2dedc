package main

import "github.com/tiammomo/mamoji-sub001/internal/cli"

func main() {
	cli.Execute()
}
