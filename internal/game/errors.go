package game

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownStory is returned by SetNextStory and QueueNextStory.
	ErrUnknownStory = errors.New("unknown story")
	// ErrQuerySyntax marks a query path with an unrecognized prefix. A valid
	// path whose key is absent is not an error.
	ErrQuerySyntax = errors.New("query syntax error")
	// ErrInvalidSaveName rejects empty save names and names escaping the
	// save folder.
	ErrInvalidSaveName = errors.New("invalid save name")
)

// ConfigError aggregates every problem found in Options.
type ConfigError struct {
	Messages []string
}

func (e *ConfigError) Error() string {
	return strings.Join(e.Messages, "\n")
}
