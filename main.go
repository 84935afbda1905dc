// ./main.go
package main

import (
	"context"
	"os"

	"github.com/xkilldash9x/repose/cmd"
)

// main is the minimal entry point for `go run .`. The released binary lives
// under cmd/repose and adds signal handling on top of this.
func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
