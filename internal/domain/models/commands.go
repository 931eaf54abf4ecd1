package models

import "strings"

// CommandType enumerates the chat commands understood by the intake channel.
type CommandType string

const (
	CommandMove    CommandType = "move"
	CommandSell    CommandType = "sell"
	CommandDeath   CommandType = "death"
	CommandMate    CommandType = "mate"
	CommandSummary CommandType = "summary"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

// Command represents a parsed operator instruction extracted from chat text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command from free-form text. Only the command word is
// case-folded; arguments keep their case because tags compare exactly.
func ParseCommand(message string) Command {
	tokens := strings.Fields(strings.TrimSpace(message))
	cmd := Command{Type: CommandUnknown, Raw: message}
	if len(tokens) == 0 {
		return cmd
	}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	switch CommandType(head) {
	case CommandMove, CommandSell, CommandDeath, CommandMate, CommandSummary, CommandHelp:
		cmd.Type = CommandType(head)
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}
	return cmd
}
