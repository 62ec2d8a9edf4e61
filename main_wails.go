//go:build desktop

package main

import (
	"fmt"
	"os"

	"VeilKit/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
