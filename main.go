//go:build !desktop

package main

import "VeilKit/cli"

func main() {
	cli.Execute()
}
