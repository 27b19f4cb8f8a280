package main

import (
	"errors"
	"fmt"
	"os"

	"needle/internal/daemon"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
