package main

import (
	"log"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/engine"
)

func main() {
	if err := engine.RunService(); err != nil {
		log.Fatal(err)
	}
}
