package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// PasswordEnv is read before prompting. Intended for scripts and tests.
const PasswordEnv = "VAULTCTL_PASSWORD"

// ErrNoTerminal is returned when a password prompt is needed but stdin is
// not a terminal.
var ErrNoTerminal = errors.New("stdin is not a terminal")

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ReadPassword returns PasswordEnv if set, otherwise prompts on w and reads
// stdin without echo.
func ReadPassword(w io.Writer, prompt string) (string, error) {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		return pw, nil
	}
	pw, err := PromptPassword(w, prompt)
	if errors.Is(err, ErrNoTerminal) {
		return "", fmt.Errorf("%w; set %s", err, PasswordEnv)
	}
	return pw, err
}

// ReadNewPassword is ReadPassword with a confirmation prompt.
func ReadNewPassword(w io.Writer) (string, error) {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		return pw, nil
	}
	pw1, err := PromptPassword(w, "Enter master password: ")
	if err != nil {
		return "", err
	}
	pw2, err := PromptPassword(w, "Confirm master password: ")
	if err != nil {
		return "", err
	}
	if pw1 != pw2 {
		return "", ErrPasswordMismatch
	}
	return pw1, nil
}

// PromptPassword prompts on w and reads a line from the terminal without echo.
func PromptPassword(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
