package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCtxAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	defer SetLogger(prev)
	prevLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prevLevel)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetLogger(NewTestLogger(&buf))

	ctx := ContextWithRunID(context.Background(), "abc12345")
	Ctx(ctx).Info().Msg("batch done")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"abc12345"`) {
		t.Errorf("expected run_id field in %s", out)
	}
	if !strings.Contains(out, "batch done") {
		t.Errorf("expected message in %s", out)
	}
}

func TestGenerateRunID(t *testing.T) {
	a, b := GenerateRunID(), GenerateRunID()
	if len(a) != 8 {
		t.Errorf("expected 8 char run id, got %q", a)
	}
	if a == b {
		t.Error("expected distinct run ids")
	}
}
