package main

import (
	"log"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/tools/flagctl"
)

func main() {
	if err := flagctl.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
