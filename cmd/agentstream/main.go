// Command agentstream is the CLI for the agentstream client.
//
// Usage:
//
//	agentstream chat --server http://localhost:2024
//	agentstream send "hello" --thread demo
//	agentstream mock --addr :2024
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/agentstream-io/agentstream"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat    ChatCmd    `cmd:"" help:"Chat with the agent interactively."`
	Send    SendCmd    `cmd:"" help:"Send one message and print the reply."`
	Health  HealthCmd  `cmd:"" help:"Check server health."`
	History HistoryCmd `cmd:"" help:"Show the message history of a thread."`
	Threads ThreadsCmd `cmd:"" help:"List thread ids for a user."`
	Mock    MockCmd    `cmd:"" help:"Run a scripted mock agent server."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to config file." type:"path"`
	Server string `short:"s" help:"Agent server base URL (overrides config)."`
	Token  string `help:"Auth token sent as X-Token (overrides config)."`
	User   string `help:"User id for requests (overrides config)."`

	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)."`

	// logOverridden records whether a flag or environment variable chose the
	// logger settings, in which case the config file's logger section is
	// ignored.
	logOverridden bool
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(agentstream.GetVersion().String())
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentstream"),
		kong.Description("agentstream - streaming conversational agent client"),
		kong.UsageOnError(),
	)

	// Initialize the logger from flags and environment before any command
	// runs; config file logger settings apply later when neither chose.
	overridden, cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}
	cli.logOverridden = overridden

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
