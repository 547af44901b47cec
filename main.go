package main

import (
	"os"

	"github.com/evalforge/evalforge/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
