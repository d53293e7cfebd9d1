// Package main is the entry point for the ORCID Link service.
package main

import (
	"os"

	"github.com/kbase/orcidlink/cmd/orcidlink/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
