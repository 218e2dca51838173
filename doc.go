// Package agentstream is a Go client for conversational agent services that
// stream their replies over Server-Sent Events.
//
// The client speaks a small HTTP+SSE protocol: one POST opens a chat turn,
// and the response body carries a stream of typed events — token fragments,
// completed messages, application errors — terminated by a [DONE] sentinel.
// Alongside streaming, the client covers the rest of the agent API surface:
// health, per-thread history, per-user thread listings, and feedback.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/agentstream-io/agentstream/cmd/agentstream@latest
//
// Chat with an agent server:
//
//	agentstream chat --server http://localhost:2024
//
// Or run the bundled mock server for local development:
//
//	agentstream mock --addr :2024
//
// # Using as Go Library
//
//	import "github.com/agentstream-io/agentstream/pkg/client"
//
//	c := client.New("http://localhost:2024")
//
//	// One-shot: collect the full turn.
//	msg, history, err := c.SendMessage(ctx, "hello")
//
//	// Streaming: pull events as they arrive.
//	stream, err := c.StreamChat(ctx, "hello")
//	for stream.Next() {
//	    ev := stream.Event()
//	    ...
//	}
//
// Specific packages:
//
//	import (
//	    "github.com/agentstream-io/agentstream/pkg/protocol"  // wire types + event dispatch
//	    "github.com/agentstream-io/agentstream/pkg/sse"       // event stream decoding
//	    "github.com/agentstream-io/agentstream/pkg/agenttest" // scripted mock server
//	)
//
// # Architecture
//
// Events flow through three layers, each pull-based so nothing is decoded
// ahead of consumption:
//
//	HTTP response body → sse.Decoder → protocol.DecodeEvent → client.Stream
//
// The Stream enforces total and idle deadlines, classifies failures, and
// guarantees a well-formed terminal sequence: every fatal condition surfaces
// as an error event followed by a final Done.
package agentstream
