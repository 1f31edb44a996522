// relayd is the room server: websocket relay, room read API and the
// sqlite-backed event log, in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sketchroom/internal/auth"
	"sketchroom/internal/discovery"
	"sketchroom/internal/httpapi"
	"sketchroom/internal/relay"
	"sketchroom/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("relayd: %v", err)
	}
}

func run() error {
	addr := flag.String("addr", ":8080", "address to listen on")
	dbPath := flag.String("db", "sketchroom.sqlite3", "path to the sqlite database")
	announce := flag.Bool("mdns", false, "advertise the relay on the local network")
	mintToken := flag.String("mint-token", "", "print a board token for the given user id and exit")
	flag.Parse()

	secret := os.Getenv("SKETCHROOM_SECRET")
	if secret == "" {
		return errors.New("SKETCHROOM_SECRET must be set")
	}
	tokens := auth.NewManager(secret, 30*24*time.Hour)

	if *mintToken != "" {
		token, err := tokens.Sign(*mintToken)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	router := httpapi.New(db).Router()
	router.Handle("/ws", relay.New(tokens, db))

	if *announce {
		port, err := listenPort(*addr)
		if err != nil {
			return err
		}
		server, err := discovery.Advertise(port)
		if err != nil {
			log.Printf("mdns advertise failed: %v", err)
		} else {
			defer server.Shutdown()
			log.Printf("advertising on the local network, port %d", port)
		}
	}

	httpServer := &http.Server{Addr: *addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s, database %s", *addr, *dbPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-exit:
		log.Printf("caught %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("bad listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("bad listen port %q: %w", portStr, err)
	}
	return port, nil
}
