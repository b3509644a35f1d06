package main

import (
	"os"

	"github.com/amirbrooks/workreport/internal/cli"
)

func main() {
	code := cli.Run(os.Args[1:])
	os.Exit(code)
}
