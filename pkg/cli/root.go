package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// UsageText is printed when the command line cannot be understood
const UsageText = "Usage: saazpay-cli add template"

// ErrUsage is returned for a missing or unknown command
var ErrUsage = errors.New("invalid command line")

// UnknownFolderError is returned when adding a template folder that does not
// exist
type UnknownFolderError struct {
	Name string
}

func (e *UnknownFolderError) Error() string {
	return fmt.Sprintf("unknown template folder: %s", e.Name)
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	out    io.Writer
	errOut io.Writer
}

// NewRootCommand creates the root command writing to stdout and stderr
func NewRootCommand() *Command {
	return newRootCommand(os.Stdout, os.Stderr)
}

func newRootCommand(out, errOut io.Writer) *Command {
	root := &Command{
		Name:        "saazpay-cli",
		Description: "saazpay - billing UI templates",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("saazpay-cli", flag.ContinueOnError),
		out:         out,
		errOut:      errOut,
	}
	root.Flags.SetOutput(errOut)

	root.Subcommands["add"] = newAddCommand(out, errOut)

	return root
}

// Execute runs the command with the process arguments
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the command with args
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return ErrUsage
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.out, "%s\n\n", UsageText)
	fmt.Fprintf(c.out, "Commands:\n")
	for name, cmd := range c.Subcommands {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, cmd.Description)
	}
	return nil
}

// Main runs the CLI with args and returns the process exit code
func Main(args []string, out, errOut io.Writer) int {
	err := newRootCommand(out, errOut).ExecuteArgs(args)
	if err == nil {
		return 0
	}

	var unknown *UnknownFolderError
	switch {
	case errors.Is(err, ErrUsage):
		fmt.Fprintln(errOut, UsageText)
	case errors.As(err, &unknown):
		fmt.Fprintf(errOut, "Unknown template folder: %s\n", unknown.Name)
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return 1
}
