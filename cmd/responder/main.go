// Command responder is the server side of the transport: it binds
// 0.0.0.0:<port>, waits for a SYN to learn the initiator's address, runs
// its half of the handshake, then exchanges application bytes over
// stdin/stdout for the life of the process (spec.md §6, §5: "the initial
// recvfrom that the responder uses to learn the client's address before
// handshake").
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
	"github.com/ventosilenzioso/ordudp/internal/wire"
)

func main() {
	cfg, err := config.ParseResponderArgs(os.Args[1:])
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

	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: cfg.Port})
	if err != nil {
		diagnostics.Fatal("bind 0.0.0.0:%d: %v", cfg.Port, err)
	}
	defer pc.Close()
	diagnostics.Info("listening on 0.0.0.0:%d", cfg.Port)

	// Blocking read to learn the initiator's address (spec.md §5's lone
	// pre-handshake suspension point); Go's ReadFromUDP yields the sender
	// address directly, so no separate MSG_PEEK call is needed here.
	buf := make([]byte, wire.MaxSegment)
	n, from, err := pc.ReadFromUDP(buf)
	if err != nil {
		diagnostics.Fatal("recv SYN: %v", err)
	}

	conn := netconn.NewUDP(pc, from)
	rng := randseed.New(cfg.Seed)
	app := ioapp.Stdio()

	st, err := handshake.Respond(conn, buf[:n], rng, app.ReadApp, app.WriteApp)
	if err != nil {
		diagnostics.Fatal("handshake: %v", err)
	}
	diagnostics.Info("established as %s with %s, send_next=%d recv_next=%d", st.Role, from, st.SendNext, st.RecvNext)

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
