package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/atrtrace/atr/internal/config"
)

// errPromptQuit is returned when the user leaves the prompt with q.
var errPromptQuit = errors.New("quit")

// promptForTarget asks for a target on in until a non-empty line is read.
func promptForTarget(in io.Reader, out io.Writer, cfg *config.Config) (string, error) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprintln(out)
	cyan.Fprintln(out, "atr - hop-by-hop path discovery")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  Examples:")
	yellow.Fprintln(out, "    • example.com          - ICMP sweep")
	yellow.Fprintln(out, "    • 192.0.2.10:443       - TCP sweep to a port (with -P tcp)")
	fmt.Fprintln(out)

	if cfg != nil && len(cfg.Aliases) > 0 {
		names := make([]string, 0, len(cfg.Aliases))
		for alias := range cfg.Aliases {
			names = append(names, alias)
		}
		sort.Strings(names)

		fmt.Fprintln(out, "  Aliases:")
		for _, alias := range names {
			yellow.Fprintf(out, "    • %s → %s\n", alias, cfg.Aliases[alias])
		}
		fmt.Fprintln(out)
	}

	reader := bufio.NewReader(in)
	for {
		green.Fprint(out, "  Enter target (host[:port]): ")

		input, err := reader.ReadString('\n')
		target := strings.TrimSpace(input)
		if err != nil {
			if errors.Is(err, io.EOF) && target != "" {
				return target, nil
			}
			if errors.Is(err, io.EOF) {
				return "", errors.New("no input provided")
			}
			return "", fmt.Errorf("failed to read input: %w", err)
		}

		if target == "" {
			red.Fprintln(out, "  ✗ Target cannot be empty. Please try again.")
			fmt.Fprintln(out)
			continue
		}

		switch target {
		case "q", "quit", "exit":
			fmt.Fprintln(out, "  Goodbye!")
			return "", errPromptQuit
		}

		fmt.Fprintln(out)
		return target, nil
	}
}
