// dscv-responder answers datagram sessions: it advertises itself over mDNS,
// replies to handshake requests, and acknowledges every application payload.
//
// Usage:
//
//	dscv-responder [options]
//
// Options:
//
//	-config  Path to a TOML config file
//	-name    Device name (default: "dscv-responder")
//	-port    UDP port to listen on (default: 1024)
//	-v       Verbose logging
//
// Flags override values from the config file.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/dscv/pkg/session"
	"github.com/pion/logging"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	name := flag.String("name", "", "device name")
	port := flag.Int("port", 0, "UDP port to listen on")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	cfg := defaultServiceConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadServiceConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *name != "" {
		cfg.DeviceName = *name
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *verbose {
		cfg.Verbose = true
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	if cfg.Verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		loggerFactory.DefaultLogLevel = logging.LogLevelInfo
	}

	responder, err := session.NewResponder(session.ResponderConfig{
		DeviceName:  cfg.DeviceName,
		ServiceType: cfg.ServiceType,
		Domain:      cfg.Domain,
		Port:        cfg.Port,
		Advertise:   cfg.Advertise,
		OnMessage: func(payload string, from net.Addr) {
			log.Printf("%v: %s", from, payload)
		},
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		log.Fatalf("Failed to create responder: %v", err)
	}

	if err := responder.Start(); err != nil {
		log.Fatalf("Failed to start responder: %v", err)
	}
	log.Printf("%s listening on %v", cfg.DeviceName, responder.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down...")
	if err := responder.Close(); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}
