// board is the desktop client: it joins a room on a relay and opens the
// drawing window.
package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"sketchroom/internal/discovery"
	"sketchroom/internal/ui"
)

func main() {
	server := flag.String("server", "", "relay base URL, e.g. http://192.168.1.10:8080 (empty: discover via mdns)")
	slug := flag.String("room", "shared-board", "room slug to join")
	aiURL := flag.String("ai", "", "drawing assistant base URL (optional)")
	flag.Parse()

	token := os.Getenv("SKETCHROOM_TOKEN")
	if token == "" {
		log.Fatal("board: SKETCHROOM_TOKEN must be set")
	}

	serverURL := *server
	if serverURL == "" {
		found, err := discoverRelay()
		if err != nil {
			log.Fatalf("board: %v", err)
		}
		serverURL = found
		log.Printf("discovered relay at %s", serverURL)
	}

	if err := ui.Run(ui.Config{
		ServerURL: serverURL,
		Slug:      *slug,
		Token:     token,
		AIBaseURL: *aiURL,
	}); err != nil {
		log.Fatalf("board: %v", err)
	}
}

func discoverRelay() (string, error) {
	var addr string
	if err := discovery.Browse(func(found string) {
		if addr == "" {
			addr = found
		}
	}); err != nil {
		return "", err
	}
	if addr == "" {
		return "", errors.New("no relay found on the local network; pass -server")
	}
	return "http://" + addr, nil
}
