// ABOUTME: UDP time service package
// ABOUTME: Health-switchable server that answers time requests over datagrams
// Package timeserver implements a time service that can be switched between
// healthy and failed modes by administrative datagrams.
//
// All datagrams are handled by one receive loop, so admin commands and time
// requests are totally ordered as the network stack delivers them. A failed
// service still reads every datagram but never answers time requests (or
// answers SERVICE_UNAVAILABLE when configured with FaultRefuse).
//
// Example:
//
//	srv, err := timeserver.New(timeserver.Config{Addr: ":5678"})
//	ctx, cancel := context.WithCancel(context.Background())
//	go srv.Run(ctx)
//	<-srv.Ready()
//	fmt.Println("listening on", srv.Addr())
package timeserver
