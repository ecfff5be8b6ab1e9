package main

import (
	"os"

	"github.com/ProtonMail/uidlist/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
