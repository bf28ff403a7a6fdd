package main

import (
	"log"

	"github.com/docserve/docserve/core/fileserver"
	"github.com/docserve/docserve/core/infra/buildinfo"
	"github.com/docserve/docserve/core/infra/config"
)

func main() {
	log.Println("docserve server starting...")
	buildinfo.Log("docserve-server")
	cfg := config.Load()
	if err := fileserver.Run(cfg); err != nil {
		log.Fatalf("docserve server error: %v", err)
	}
}
