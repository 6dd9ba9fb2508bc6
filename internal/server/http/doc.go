// Package httpserver is Sluice's transport binding: JSON endpoints for
// Publish/ListTopics and a WebSocket endpoint for the bidirectional
// Subscribe stream (spec §6's wire protocol, concretized the way
// sneh-joshi-epochq's internal/transport/websocket binds its own push
// delivery onto gorilla/websocket).
//
// Example:
//
//	s := httpserver.New(writerCore, store, registry, nil, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, "127.0.0.1:8080", config.TLSConfig{})
package httpserver
