package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// tokensFrom returns want tokens, prompting without echo for any not given as flags.
func tokensFrom(cmd *cobra.Command, given []string, want int) ([]string, error) {
	if len(given) > want {
		return nil, fmt.Errorf("expected at most %d --token flags, got %d", want, len(given))
	}
	tokens := append([]string(nil), given...)
	reader := bufio.NewReader(cmd.InOrStdin())
	for i := len(tokens); i < want; i++ {
		token, err := readSecret(cmd, reader, fmt.Sprintf("Token %d", i+1))
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// readSecret reads without echo from a terminal and falls back to a plain
// line for piped input.
func readSecret(cmd *cobra.Command, reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", prompt)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return string(secret), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return strings.TrimRight(line, "\r\n"), nil
}
