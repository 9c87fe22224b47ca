// Package approval runs the operator review of generated replies: one
// Session per post, driven by console commands.
package approval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind is the action an operator requested.
type CommandKind int

const (
	CommandPost    CommandKind = iota // y<n>
	CommandImprove                    // i<n>
	CommandSkip                       // n
	CommandSkipAll                    // s
)

func (k CommandKind) String() string {
	switch k {
	case CommandPost:
		return "post"
	case CommandImprove:
		return "improve"
	case CommandSkip:
		return "skip"
	case CommandSkipAll:
		return "skip-all"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a parsed operator input. Option is 1-based and only set for
// post and improve.
type Command struct {
	Kind   CommandKind
	Option int
}

// ErrInvalidCommand is returned for input that is not a command.
var ErrInvalidCommand = errors.New("invalid command")

// ParseCommand accepts y<n>, i<n>, n and s, case-insensitively and with
// optional whitespace between the letter and the number.
func ParseCommand(input string) (Command, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	switch s {
	case "":
		return Command{}, fmt.Errorf("%w: empty input", ErrInvalidCommand)
	case "n":
		return Command{Kind: CommandSkip}, nil
	case "s":
		return Command{Kind: CommandSkipAll}, nil
	}

	var kind CommandKind
	switch s[0] {
	case 'y':
		kind = CommandPost
	case 'i':
		kind = CommandImprove
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, input)
	}
	num := strings.TrimSpace(s[1:])
	if num == "" {
		return Command{}, fmt.Errorf("%w: %q needs an option number", ErrInvalidCommand, input)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return Command{}, fmt.Errorf("%w: %q has no valid option number", ErrInvalidCommand, input)
	}
	return Command{Kind: kind, Option: n}, nil
}
