// Package serverrun wires the Durable Log Store, Writer Core, Topic
// Registry, and HTTP/WebSocket transport into one running process and
// implements the shutdown sequence spec §5 requires: stop accepting new
// streams, let active sessions close, drain the writer queue, commit one
// final batch, then exit (forcing termination if shutdown_grace_ms
// elapses first).
//
// Example:
//
//	cfg := config.Default()
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, cfg, logger)
package serverrun
