package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGetBeforeInitIsSilent(t *testing.T) {
	Reset()
	l := Get()
	l.Info().Msg("dropped")
	if l.GetLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled logger before Init, got %v", l.GetLevel())
	}
}

func TestInitOnlyOnce(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	Init(Options{Level: "debug", Output: &first})
	Init(Options{Level: "error", Output: &second})

	l := Get()
	l.Debug().Str("k", "v").Msg("hello")
	if !strings.Contains(first.String(), `"message":"hello"`) {
		t.Fatalf("expected first writer to receive the log line, got %q", first.String())
	}
	if second.Len() != 0 {
		t.Fatalf("expected second Init to be ignored")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
