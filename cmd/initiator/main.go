// Command initiator is the client side of the transport: it connects to
// a responder at <hostname> <port>, runs the handshake, then exchanges
// application bytes over stdin/stdout for the life of the process
// (spec.md §6, §1: "sessions are indefinite and terminated externally").
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ventosilenzioso/ordudp/internal/config"
	"github.com/ventosilenzioso/ordudp/internal/diagnostics"
	"github.com/ventosilenzioso/ordudp/internal/handshake"
	"github.com/ventosilenzioso/ordudp/internal/ioapp"
	"github.com/ventosilenzioso/ordudp/internal/netconn"
	"github.com/ventosilenzioso/ordudp/internal/randseed"
	"github.com/ventosilenzioso/ordudp/internal/session"
)

func main() {
	cfg, err := config.ParseInitiatorArgs(os.Args[1:])
	if err != nil {
		diagnostics.Error("argument error: %v", err)
		os.Exit(1)
	}

	level, err := cfg.Apply()
	if err != nil {
		diagnostics.Error("%v", err)
		os.Exit(1)
	}
	diagnostics.SetLevel(level)

	peer := &net.UDPAddr{IP: net.ParseIP(cfg.Host), Port: cfg.Port}
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		diagnostics.Fatal("socket: %v", err)
	}
	defer pc.Close()

	conn := netconn.NewUDP(pc, peer)
	rng := randseed.New(cfg.Seed)
	app := ioapp.Stdio()

	st, err := handshake.Initiate(conn, rng, app.ReadApp, app.WriteApp)
	if err != nil {
		diagnostics.Fatal("handshake: %v", err)
	}
	diagnostics.Info("established as %s, send_next=%d recv_next=%d", st.Role, st.SendNext, st.RecvNext)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		diagnostics.Info("received shutdown signal")
		cancel()
	}()

	if err := session.Run(ctx, conn, st, app.ReadApp, app.WriteApp); err != nil && ctx.Err() == nil {
		diagnostics.Fatal("session: %v", err)
	}
}
