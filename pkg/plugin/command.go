package plugin

import (
	shellquote "github.com/kballard/go-shellquote"

	"github.com/jingkaihe/enginelog/internal/errx"
)

// ParseCommand splits a shell-style command line into arguments. Quotes
// and escapes are honoured, no expansion is performed.
func ParseCommand(line string) ([]string, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, errx.Wrap(ErrParseCommand, err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// QuoteCommand joins args into a command line that ParseCommand splits
// back into the same arguments.
func QuoteCommand(args []string) string {
	return shellquote.Join(args...)
}
