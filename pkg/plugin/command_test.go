package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandSimple(t *testing.T) {
	args, err := ParseCommand("my-plugin --port 0")
	require.NoError(t, err)
	assert.Equal(t, []string{"my-plugin", "--port", "0"}, args)
}

func TestParseCommandQuotes(t *testing.T) {
	args, err := ParseCommand(`sh -c 'echo "hello world"; echo $HOME'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c", `echo "hello world"; echo $HOME`}, args)
}

func TestParseCommandEmpty(t *testing.T) {
	_, err := ParseCommand("   ")
	require.ErrorIs(t, err, ErrEmptyCommand)
}

func TestParseCommandUnterminatedQuote(t *testing.T) {
	_, err := ParseCommand(`echo "oops`)
	require.ErrorIs(t, err, ErrParseCommand)
}

func TestQuoteCommandRoundTrips(t *testing.T) {
	for _, args := range [][]string{
		{"echo", "hello"},
		{"echo", "hello world"},
		{"echo", "$HOME"},
		{"echo", "it's"},
		{"ls", "*.go"},
		{"printf", "%s", ""},
		{"echo", `back\slash`},
	} {
		got, err := ParseCommand(QuoteCommand(args))
		require.NoError(t, err, args)
		assert.Equal(t, args, got)
	}
}

func TestQuoteCommandSimpleStaysReadable(t *testing.T) {
	assert.Equal(t, "echo hello", QuoteCommand([]string{"echo", "hello"}))
}
