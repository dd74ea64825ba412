package main

import "matrixci/internal/cli"

func main() {
	cli.Execute()
}
