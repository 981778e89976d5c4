// Package main is the entry point for the ckg tool server.
package main

import (
	"github.com/cgordon-dev/codon-kg/internal/cmd"
)

func main() {
	cmd.Execute()
}
