package main

import (
	"log"

	"github.com/Abiet55/testtestbot/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("premium bot failed: %v", err)
	}
}
