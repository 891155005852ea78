package subtitle

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSMPTETTEncoderBasic(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSMPTETTEncoder(&buf)

	cue := Cue{Start: 1500 * time.Millisecond, End: 3200 * time.Millisecond, Lines: []string{"HELLO", "WORLD"}}
	if err := enc.WriteCue(cue); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "<?xml") {
		t.Fatalf("missing xml header, got %q", out)
	}
	if !strings.Contains(out, `<p begin="00:00:01,500" end="00:00:03.199">`) {
		t.Fatalf("timing attrs wrong, got %q", out)
	}
	if !strings.Contains(out, "HELLO<br/>\r\nWORLD") {
		t.Fatalf("lines not joined with <br/>, got %q", out)
	}
}

func TestSMPTETTEncoderSkipsEmptyCue(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSMPTETTEncoder(&buf)
	if err := enc.WriteCue(Cue{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<p begin") {
		t.Errorf("unexpected <p> for empty cue, got %q", buf.String())
	}
}

func TestSMPTETTEncoderClose(t *testing.T) {
	var buf bytes.Buffer
	enc := NewSMPTETTEncoder(&buf)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "</div>\n</body>\n</tt>\n" {
		t.Errorf("Close wrote %q", got)
	}
}
