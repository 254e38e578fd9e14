package main

import (
	"log"
	"os"

	"storefront/cmd/internal/app"
)

func main() {
	if err := app.RunProvisionAdmin(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}
