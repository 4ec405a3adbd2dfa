package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrInvalid is returned when an instance or schema was checked and rejected.
// Callers exit with status 1 for it and 2 for any other error.
var ErrInvalid = errors.New("validation failed")

// Streams are the standard streams a command reads and writes
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string, streams Streams) error
	Subcommands map[string]*Command
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "jsonguard",
		Description: "jsonguard - JSON Schema validation",
		Subcommands: make(map[string]*Command),
	}

	root.Subcommands["validate"] = newValidateCommand()
	root.Subcommands["check"] = newCheckCommand()

	return root
}

// Execute runs the command with the process arguments and streams
func (c *Command) Execute(ctx context.Context) error {
	return c.ExecuteArgs(ctx, os.Args[1:], StdStreams())
}

// ExecuteArgs runs the command with explicit arguments and streams
func (c *Command) ExecuteArgs(ctx context.Context, args []string, streams Streams) error {
	if len(args) == 0 {
		return c.usage(streams.Out)
	}

	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage(streams.Out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:], streams)
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newFlagSet returns a flag set that reports parse errors instead of exiting
func newFlagSet(name string, streams Streams) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(streams.Err)
	return flags
}
