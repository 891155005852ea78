package subtitle

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSAMIEncoderWritesHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSAMIEncoder(&buf)

	cue := Cue{Start: time.Second, End: 2 * time.Second, Lines: []string{"HI"}}
	if err := enc.WriteCue(cue); err != nil {
		t.Fatal(err)
	}
	if err := enc.WriteCue(cue); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if strings.Count(out, "<SAMI>") != 1 {
		t.Errorf("header written %d times, want 1; out=%q", strings.Count(out, "<SAMI>"), out)
	}
	if strings.Count(out, "<SYNC start=1000>") != 2 {
		t.Errorf("missing both start syncs in %q", out)
	}
	if !strings.Contains(out, "HI</P></SYNC>") {
		t.Errorf("missing cue text in %q", out)
	}
	if !strings.Contains(out, "<SYNC start=2000>") {
		t.Errorf("missing closing blank sync in %q", out)
	}
}

func TestSAMIEncoderSkipsEmptyCueButKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSAMIEncoder(&buf)
	if err := enc.WriteCue(Cue{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "<SAMI>") {
		t.Errorf("header missing for empty cue, got %q", out)
	}
	if strings.Contains(out, "<SYNC start=") {
		t.Errorf("unexpected SYNC block for empty cue, got %q", out)
	}
}

func TestSAMIEncoderClose(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSAMIEncoder(&buf)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "</BODY></SAMI>\r\n" {
		t.Errorf("Close wrote %q", got)
	}
}
