package main

import (
	"github.com/pulsegen/pulse/internal/cli"
)

func main() {
	cli.Execute()
}
