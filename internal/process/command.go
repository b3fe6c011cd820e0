package process

import (
	"errors"
	"strings"
)

// SplitCommand splits a command line into arguments.
// Handles single and double quotes. A backslash escapes a following quote,
// space or backslash and is otherwise literal, so Windows paths survive.
func SplitCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	hasArg := false

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
				hasArg = true
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if hasArg {
				args = append(args, current.String())
				current.Reset()
				hasArg = false
			}
		case r == '\\' && i+1 < len(runes) && strings.ContainsRune(`"' \\`, runes[i+1]):
			i++
			current.WriteRune(runes[i])
			hasArg = true
		default:
			current.WriteRune(r)
			hasArg = true
		}
	}

	if inQuote {
		return nil, errors.New("unclosed quote in command")
	}
	if hasArg {
		args = append(args, current.String())
	}
	return args, nil
}

// ParseSpec builds a Spec from a command line.
func ParseSpec(command string, env map[string]string) (Spec, error) {
	args, err := SplitCommand(command)
	if err != nil {
		return Spec{}, err
	}
	if len(args) == 0 {
		return Spec{}, errors.New("empty command")
	}
	return Spec{Path: args[0], Args: args[1:], Env: env}, nil
}
