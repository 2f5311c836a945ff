package main

import (
	"os"

	"github.com/oselabs/webrelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// Execute already reported the error; exit nonzero for scripts.
		os.Exit(1)
	}
}
