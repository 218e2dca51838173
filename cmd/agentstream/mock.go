package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentstream-io/agentstream/pkg/agenttest"
)

// MockCmd runs the scripted mock agent server, standing in for a real
// agent backend during development.
type MockCmd struct {
	Addr   string `help:"Address to listen on." default:":2024"`
	Script string `help:"YAML script file played back on every stream request." type:"path"`
	Token  string `help:"Require this X-Token on every request."`
}

func (c *MockCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	mock := agenttest.New()
	if c.Script != "" {
		steps, err := agenttest.LoadScript(c.Script)
		if err != nil {
			return err
		}
		mock.SetScript(steps...)
		slog.Info("Loaded stream script", "path", c.Script, "steps", len(steps))
	}
	if c.Token != "" {
		mock.SetAuthToken(c.Token)
	}

	fmt.Printf("\nMock agent server ready on %s\n", c.Addr)
	fmt.Println("   Stream:   POST /v1/stream")
	fmt.Println("   Health:   GET  /health")
	fmt.Println("   History:  GET  /v1/history/{thread_id}")
	fmt.Println("   Threads:  GET  /v1/threads/{user_id}")
	fmt.Println("   Feedback: POST /v1/feedback")
	fmt.Println("\nPress Ctrl+C to stop")

	return mock.Start(ctx, c.Addr)
}
