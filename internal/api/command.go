package api

import (
	"fmt"
	"strconv"
	"strings"
)

// Command kinds produced by the chat grammar.
const (
	CmdChat = iota
	CmdGiveaway
	CmdEnter
)

// Command is a parsed chat line: either a plain message or one of the
// slash commands.
type Command struct {
	Kind   int
	Text   string
	Amount int64
}

// ParseCommand classifies a chat line. "/giveaway <amount>" opens a
// giveaway, "/enter" joins the active one, anything else is plain chat.
func ParseCommand(text string) (Command, error) {
	trimmed := strings.TrimSpace(text)
	fields := strings.Fields(trimmed)
	switch {
	case len(fields) > 0 && fields[0] == "/giveaway":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("usage: /giveaway <amount>")
		}
		amount, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("invalid amount %q", fields[1])
		}
		return Command{Kind: CmdGiveaway, Amount: amount}, nil
	case trimmed == "/enter":
		return Command{Kind: CmdEnter}, nil
	default:
		return Command{Kind: CmdChat, Text: text}, nil
	}
}
