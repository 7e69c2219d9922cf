package main

import (
	"os"

	"github.com/chiliseed/build-worker/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
