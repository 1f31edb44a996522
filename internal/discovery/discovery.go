// Package discovery advertises a relay on the local network over mDNS and
// lets board clients find one without typing an address.
package discovery

import (
	"fmt"
	"os"

	"github.com/hashicorp/mdns"
)

const serviceType = "_sketchroom._tcp"

// Advertise announces a relay listening on port. Call Shutdown on the
// returned server when the relay stops.
func Advertise(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("discovery: hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(
		host,
		serviceType,
		"", // default ".local" domain
		"", // default OS hostname
		port,
		nil, // auto-detect IPs
		[]string{"sketchroom relay"},
	)
	if err != nil {
		return nil, fmt.Errorf("discovery: create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("discovery: start server: %w", err)
	}
	return server, nil
}

// Browse runs one lookup on the local network and calls found with each
// relay address as "host:port". It returns when the lookup finishes.
func Browse(found func(addr string)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found(fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port))
		}
	}()
	err := mdns.Lookup(serviceType, entries)
	close(entries)
	<-done
	return err
}
