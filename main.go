package main

import (
	"log"

	"github.com/SpaghettiHub/maas-sub001/config"
	"github.com/SpaghettiHub/maas-sub001/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
