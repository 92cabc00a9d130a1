package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "charm.land/bubbletea/v2"
	"github.com/joho/godotenv"

	"github.com/go-authgate/speaknative/tui"
)

// command is one speaknative subcommand.
type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"shell", "desktop supervisory process (default)", runShell},
	{"window", "desktop window process, started by the shell", runWindow},
	{"web", "single-process session backed by a cookie jar", runWeb},
	{"devserver", "local development API", runDevServer},
	{"releases", "print the latest desktop download links", runReleases},
}

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	name, rest := "shell", args
	if len(args) > 0 && isCommandName(args[0]) {
		name, rest = args[0], args[1:]
	}
	if name == "help" {
		printUsage(os.Stdout)
		return 0
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", name)
		printUsage(os.Stderr)
		return 2
	}
	if err := cmd.run(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var shown *shownError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// shownError is an error the Displayer has already put in front of the user.
type shownError struct{ err error }

func (e *shownError) Error() string { return e.err.Error() }
func (e *shownError) Unwrap() error { return e.err }

// isCommandName tells a subcommand from flags and from the callback URL the
// OS passes when it launches the app for the custom scheme.
func isCommandName(arg string) bool {
	return arg != "" && !strings.HasPrefix(arg, "-") && !strings.Contains(arg, "://")
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: speaknative [command] [flags] [callback-url]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'speaknative <command> -h' for the flags of a command.")
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// withDisplayer runs fn with the status view suited to stderr: the bubbletea
// program on a terminal, plain lines otherwise.
func withDisplayer(title string, fn func(d tui.Displayer) error) error {
	if !isTTY() {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner(title)
		if err := fn(d); err != nil {
			d.Fatal(err)
			return &shownError{err}
		}
		return nil
	}

	// Run TUI program on stderr so stdout pipes are not corrupted
	m := tui.NewModel()
	// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
	// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		}
	}()

	d := tui.NewProgramDisplayer(p)
	d.Banner(title)
	err := fn(d)
	if err != nil {
		d.Fatal(err)
	}
	p.Quit() // let BubbleTea drain terminal query responses before exiting
	wg.Wait()
	if err != nil {
		return &shownError{err}
	}
	return nil
}
