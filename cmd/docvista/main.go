// Command docvista serves and queries a DocVista document index.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/docvista/cmd/docvista/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
