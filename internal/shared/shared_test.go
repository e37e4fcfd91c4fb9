package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		name  string
		level string
		want  log.Level
	}{
		{name: "empty defaults to info", level: "", want: log.InfoLevel},
		{name: "debug", level: "debug", want: log.DebugLevel},
		{name: "warn", level: "warn", want: log.WarnLevel},
		{name: "unknown defaults to info", level: "chatty", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLogLevel(tt.level); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("NewLogger writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "test")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "component=test") {
			t.Errorf("unexpected log output %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "snipx.log")
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("failed to create file logger: %v", err)
		}
		logger.Info("to file")

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "to file") {
			t.Errorf("expected log line in file, got %q", string(data))
		}
	})
}

func TestEncoding(t *testing.T) {
	type sample struct {
		Name string `json:"name" yaml:"name"`
	}

	t.Run("MarshalJSON pretty", func(t *testing.T) {
		data, err := MarshalJSON(sample{Name: "x"}, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "{\n  \"name\": \"x\"\n}" {
			t.Errorf("unexpected JSON %q", string(data))
		}
	})

	t.Run("MarshalYAML", func(t *testing.T) {
		data, err := MarshalYAML(sample{Name: "x"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "name: x\n" {
			t.Errorf("unexpected YAML %q", string(data))
		}
	})

	t.Run("GenerateID", func(t *testing.T) {
		id := GenerateID()
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("expected a UUID, got %q", id)
		}
	})
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandHome("~/.snipx/db"); got != filepath.Join(home, ".snipx/db") {
		t.Errorf("unexpected expansion %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path should be unchanged, got %q", got)
	}
	if got := ExpandHome(":memory:"); got != ":memory:" {
		t.Errorf(":memory: should be unchanged, got %q", got)
	}
}

func TestOpenBrowser(t *testing.T) {
	original := getRuntime
	t.Cleanup(func() { getRuntime = original })
	getRuntime = func() string { return "plan9" }

	t.Run("refuses non-web schemes", func(t *testing.T) {
		for _, link := range []string{"file:///etc/passwd", "javascript:alert(1)", "ssh://host", "not a url", "http://"} {
			if err := OpenBrowser(link); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("OpenBrowser(%q) = %v, want ErrInvalidArgument", link, err)
			}
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		err := OpenBrowser("http://127.0.0.1:5174")
		if err == nil || !strings.Contains(err.Error(), "unsupported platform: plan9") {
			t.Errorf("expected unsupported platform error, got %v", err)
		}
	})
}
