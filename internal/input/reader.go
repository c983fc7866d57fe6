// Package input reads answers and passwords from the terminal.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ksyq12/tsm/internal/errors"
)

// Reader is an interface for reading user input
type Reader interface {
	ReadString(delim byte) (string, error)
}

// PasswordReader is implemented by readers that can read without echo.
type PasswordReader interface {
	ReadPassword() (string, error)
}

// StdinReader wraps bufio.Reader for os.Stdin
type StdinReader struct {
	reader *bufio.Reader
	fd     int
}

// NewStdinReader creates a new StdinReader
func NewStdinReader() *StdinReader {
	return &StdinReader{
		reader: bufio.NewReader(os.Stdin),
		fd:     int(os.Stdin.Fd()),
	}
}

// ReadString reads until delimiter
func (r *StdinReader) ReadString(delim byte) (string, error) {
	return r.reader.ReadString(delim)
}

// ReadPassword reads a line with echo disabled when stdin is a terminal,
// and a plain line otherwise so passwords can be piped in.
func (r *StdinReader) ReadPassword() (string, error) {
	if !term.IsTerminal(r.fd) {
		line, err := r.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	b, err := term.ReadPassword(r.fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StringReader is a simple reader for testing.
// Each input string should already include the delimiter that will be used
// in ReadString calls (e.g., "yes\n" for newline delimiter).
type StringReader struct {
	inputs []string
	index  int
}

// NewStringReader creates a reader from strings.
// Each input string should include the expected delimiter.
func NewStringReader(inputs ...string) *StringReader {
	return &StringReader{inputs: inputs}
}

// ReadString returns the next pre-configured string.
// Returns io.EOF when all inputs have been consumed.
// Note: The delim parameter is ignored; inputs should already include delimiters.
func (r *StringReader) ReadString(delim byte) (string, error) {
	if r.index >= len(r.inputs) {
		return "", io.EOF
	}
	result := r.inputs[r.index]
	r.index++
	return result, nil
}

func readLine(r Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks a yes/no question. Only "y" and "yes" count as yes.
func Confirm(r Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	answer, err := readLine(r)
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Password prompts for a password, hiding input when r supports it.
func Password(r Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt+": ")
	if pr, ok := r.(PasswordReader); ok {
		return pr.ReadPassword()
	}
	return readLine(r)
}

// NewPassword prompts twice and fails when the entries differ or are empty.
func NewPassword(r Reader, w io.Writer) (string, error) {
	first, err := Password(r, w, "Password")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeValidation, "failed to read password", err)
	}
	if first == "" {
		return "", errors.Validation("password cannot be empty")
	}
	second, err := Password(r, w, "Confirm password")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeValidation, "failed to read password", err)
	}
	if first != second {
		return "", errors.Validation("passwords do not match")
	}
	return first, nil
}
