package main

import (
	"gearwatch/internal/cli"
)

func main() {
	cli.Execute()
}
