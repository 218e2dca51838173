package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentstream-io/agentstream/pkg/client"
)

// SendCmd sends one message and prints the assistant's reply.
type SendCmd struct {
	Text    string `arg:"" help:"Message text."`
	Thread  string `help:"Thread id to continue. Empty starts a new thread."`
	Session string `help:"Session id override (defaults to the thread id)."`
	JSON    bool   `help:"Print the full reply message as JSON."`
}

func (c *SendCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cl, cleanup, err := cli.buildClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var opts []client.TurnOption
	if c.Thread != "" {
		opts = append(opts, client.WithThread(c.Thread))
	}
	if c.Session != "" {
		opts = append(opts, client.WithSession(c.Session))
	}

	msg, _, err := cl.SendMessage(ctx, c.Text, opts...)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(msg)
	}
	fmt.Println(msg.Content)
	return nil
}

// HealthCmd checks the agent server's health endpoint.
type HealthCmd struct {
	JSON bool `help:"Print the health document as JSON."`
}

func (c *HealthCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cl, cleanup, err := cli.buildClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := cl.Health(ctx)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(status)
	}
	if status.Service != "" {
		fmt.Printf("%s (%s)\n", status.Status, status.Service)
		return nil
	}
	fmt.Println(status.Status)
	return nil
}

// HistoryCmd prints the server-side message history of a thread.
type HistoryCmd struct {
	Thread string `arg:"" help:"Thread id."`
	JSON   bool   `help:"Print the history as JSON."`
}

func (c *HistoryCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cl, cleanup, err := cli.buildClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	msgs, err := cl.History(ctx, c.Thread)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(msgs)
	}
	for _, m := range msgs {
		fmt.Printf("%s: %s\n", m.Type, m.Content)
	}
	return nil
}

// ThreadsCmd lists the thread ids the server knows for a user.
type ThreadsCmd struct {
	User string `arg:"" optional:"" help:"User id (defaults to the configured user)."`
}

func (c *ThreadsCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cl, cleanup, err := cli.buildClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	threads, err := cl.ListThreads(ctx, c.User)
	if err != nil {
		return err
	}
	for _, id := range threads {
		fmt.Println(id)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
