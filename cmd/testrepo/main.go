package main

import (
	"os"

	"github.com/repokit/testrepo/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
