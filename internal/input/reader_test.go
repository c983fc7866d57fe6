package input

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/ksyq12/tsm/internal/errors"
)

func TestStringReader_ReadString(t *testing.T) {
	t.Run("single input", func(t *testing.T) {
		reader := NewStringReader("yes\n")
		result, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString failed: %v", err)
		}
		if result != "yes\n" {
			t.Errorf("expected 'yes\\n', got '%s'", result)
		}
	})

	t.Run("multiple inputs", func(t *testing.T) {
		reader := NewStringReader("first\n", "second\n", "third\n")

		result1, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString for first failed: %v", err)
		}
		if result1 != "first\n" {
			t.Errorf("expected 'first\\n', got '%s'", result1)
		}

		result2, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString for second failed: %v", err)
		}
		if result2 != "second\n" {
			t.Errorf("expected 'second\\n', got '%s'", result2)
		}

		result3, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString for third failed: %v", err)
		}
		if result3 != "third\n" {
			t.Errorf("expected 'third\\n', got '%s'", result3)
		}
	})

	t.Run("EOF after all inputs consumed", func(t *testing.T) {
		reader := NewStringReader("yes\n")
		_, err := reader.ReadString('\n') // consume the input
		if err != nil {
			t.Fatalf("ReadString failed: %v", err)
		}

		result, err := reader.ReadString('\n')
		if err != io.EOF {
			t.Errorf("expected io.EOF, got %v", err)
		}
		if result != "" {
			t.Errorf("expected empty string, got '%s'", result)
		}
	})

	t.Run("EOF on empty reader", func(t *testing.T) {
		reader := NewStringReader()
		result, err := reader.ReadString('\n')
		if err != io.EOF {
			t.Errorf("expected io.EOF, got %v", err)
		}
		if result != "" {
			t.Errorf("expected empty string, got '%s'", result)
		}
	})
}

func TestNewStdinReader(t *testing.T) {
	reader := NewStdinReader()
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
	if reader.reader == nil {
		t.Error("expected non-nil bufio.Reader")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name   string
		inputs []string
		want   bool
	}{
		{"yes", []string{"yes\n"}, true},
		{"short yes", []string{"Y\n"}, true},
		{"padded", []string{"  y  \r\n"}, true},
		{"no", []string{"n\n"}, false},
		{"empty", []string{"\n"}, false},
		{"anything else", []string{"sure\n"}, false},
		{"eof", nil, false},
		{"no trailing newline", []string{"yes"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := Confirm(NewStringReader(tt.inputs...), &out, "Delete user?")
			if err != nil {
				t.Fatalf("Confirm failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if out.String() != "Delete user? [y/N]: " {
				t.Errorf("unexpected prompt %q", out.String())
			}
		})
	}
}

type hiddenReader struct {
	*StringReader
	calls int
}

func (h *hiddenReader) ReadPassword() (string, error) {
	h.calls++
	line, err := h.ReadString('\n')
	return strings.TrimSuffix(line, "\n"), err
}

func TestPassword(t *testing.T) {
	t.Run("plain reader", func(t *testing.T) {
		var out bytes.Buffer
		pw, err := Password(NewStringReader("hunter2\n"), &out, "Password")
		if err != nil {
			t.Fatalf("Password failed: %v", err)
		}
		if pw != "hunter2" {
			t.Errorf("expected hunter2, got %q", pw)
		}
		if out.String() != "Password: " {
			t.Errorf("unexpected prompt %q", out.String())
		}
	})

	t.Run("hidden reader", func(t *testing.T) {
		r := &hiddenReader{StringReader: NewStringReader("secret\n")}
		pw, err := Password(r, io.Discard, "Password")
		if err != nil {
			t.Fatalf("Password failed: %v", err)
		}
		if pw != "secret" || r.calls != 1 {
			t.Errorf("expected hidden read of secret, got %q (%d calls)", pw, r.calls)
		}
	})
}

func TestNewPassword(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []string
		want    string
		wantErr bool
	}{
		{"match", []string{"pw\n", "pw\n"}, "pw", false},
		{"mismatch", []string{"pw\n", "other\n"}, "", true},
		{"empty", []string{"\n", "\n"}, "", true},
		{"missing confirmation", []string{"pw\n"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPassword(NewStringReader(tt.inputs...), io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
