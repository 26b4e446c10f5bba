package main

import (
	"os"

	"github.com/masskarem1/PHYS.101-Ebook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
