package main

import "bgtask/cmd/cli"

func main() {
	cli.Execute()
}
