package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptLine asks for a non-empty line of input.
func promptLine(reader *bufio.Reader, label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}

		value := strings.TrimSpace(line)
		if value == "" {
			fmt.Printf("%s cannot be empty.\n", label)
			continue
		}
		return value, nil
	}
}

// promptSecret asks for a password with masked input, falling back to plain input when
// stdin is not a terminal.
func promptSecret(reader *bufio.Reader, label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)

		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			secret = []byte(strings.TrimRight(line, "\r\n"))
		} else {
			fmt.Println()
		}

		if len(secret) == 0 {
			fmt.Printf("%s cannot be empty.\n", label)
			continue
		}
		return string(secret), nil
	}
}
