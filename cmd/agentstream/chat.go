package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/agentstream-io/agentstream/pkg/client"
	"github.com/agentstream-io/agentstream/pkg/protocol"
)

// ChatCmd runs an interactive chat session against the agent server.
type ChatCmd struct {
	Thread   string `help:"Thread id to continue. Empty starts a new thread."`
	Session  string `help:"Session id override (defaults to the thread id)."`
	NoTokens bool   `name:"no-tokens" help:"Disable token streaming and print whole replies."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cl, cleanup, err := cli.buildClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	// Piped input reads one message from stdin and prints the reply, so
	// `echo hi | agentstream chat` works in scripts.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return c.pipedTurn(ctx, cl)
	}
	return c.interactive(ctx, cl)
}

func (c *ChatCmd) pipedTurn(ctx context.Context, cl *client.Client) error {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	text := strings.TrimSpace(string(input))
	if text == "" {
		return errors.New("no input on stdin")
	}

	opts := c.turnOptions()
	if c.Thread != "" {
		opts = append(opts, client.WithThread(c.Thread))
	}
	if c.Session != "" {
		opts = append(opts, client.WithSession(c.Session))
	}
	msg, _, err := cl.SendMessage(ctx, text, opts...)
	if err != nil {
		return err
	}
	fmt.Println(msg.Content)
	return nil
}

func (c *ChatCmd) interactive(ctx context.Context, cl *client.Client) error {
	reader := bufio.NewReader(os.Stdin)
	thread, session := c.Thread, c.Session

	fmt.Println("Type your messages below. Commands:")
	fmt.Println("  /quit or /exit - end the session")
	fmt.Println("  /clear         - start a fresh thread")
	fmt.Println("  /history       - show the server-side thread history")
	fmt.Println()

	for {
		fmt.Print("You: ")

		input, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			switch input {
			case "/quit", "/exit":
				fmt.Println("Chat session ended")
				return nil
			case "/clear":
				if thread != "" {
					_ = cl.Sessions().Reset(ctx, thread)
				}
				thread, session = "", ""
				fmt.Println("Conversation cleared; the next message starts a fresh thread")
				continue
			case "/history":
				printHistory(ctx, cl, thread)
				continue
			default:
				fmt.Printf("Unknown command: %s\n", input)
				continue
			}
		}

		opts := c.turnOptions()
		if thread != "" {
			opts = append(opts, client.WithThread(thread))
		}
		if session != "" {
			opts = append(opts, client.WithSession(session))
		}

		stream, err := cl.StreamChat(ctx, input, opts...)
		if err != nil {
			fmt.Printf("Error: %v\n\n", err)
			continue
		}
		// Later turns continue the identifiers of the first.
		thread, session = stream.ThreadID(), stream.SessionID()

		fmt.Print("Agent: ")
		printTurn(stream)
		fmt.Println()
	}
}

func (c *ChatCmd) turnOptions() []client.TurnOption {
	var opts []client.TurnOption
	if c.NoTokens {
		opts = append(opts, client.WithTokens(false))
	}
	return opts
}

// printTurn renders one streamed turn: live tokens when the server sends
// them, otherwise the completed assistant message.
func printTurn(stream *client.Stream) {
	var sawToken bool
	for stream.Next() {
		ev := stream.Event()
		switch ev.Kind {
		case protocol.KindToken:
			fmt.Print(ev.Token)
			sawToken = true
		case protocol.KindMessage:
			if ev.Message.Type == protocol.RoleAI && !sawToken {
				fmt.Print(ev.Message.Content)
			}
		case protocol.KindError:
			fmt.Printf("\nError: %s", ev.Err.Message)
		}
	}
	if err := stream.Err(); err != nil {
		fmt.Printf("\nError: %v", err)
	}
	fmt.Println()
}

func printHistory(ctx context.Context, cl *client.Client, thread string) {
	if thread == "" {
		fmt.Println("No thread yet")
		return
	}
	msgs, err := cl.History(ctx, thread)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(msgs) == 0 {
		fmt.Println("No messages")
		return
	}
	for _, m := range msgs {
		fmt.Printf("  %s: %s\n", m.Type, m.Content)
	}
}
