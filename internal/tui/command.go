package tui

import (
	"fmt"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"q":  "quit",
	"h":  "help",
	"o":  "open",
	"s":  "search",
	"rc": "reconnect",
}

var commandArgs = map[string]bool{
	"open":      true,
	"search":    false,
	"reload":    false,
	"more":      false,
	"reconnect": false,
	"help":      false,
	"quit":      false,
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) (Command, error) {
	input = strings.TrimSpace(input)
	name, args, _ := strings.Cut(input, " ")
	cmd := Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
	if alias, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = alias
	}

	needsArgs, ok := commandArgs[cmd.Name]
	if !ok {
		return cmd, fmt.Errorf("unknown command %q", name)
	}
	if needsArgs && cmd.Args == "" {
		return cmd, fmt.Errorf(":%s needs an argument", cmd.Name)
	}
	return cmd, nil
}
