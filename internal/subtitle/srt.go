package subtitle

import (
	"fmt"
	"io"
	"time"
)

// SRTEncoder writes SubRip (.srt) cues, ported from write_cc_buffer_as_srt:
// a running counter, "hh:mm:ss,mmm --> hh:mm:ss,mmm" timing line, the cue
// text, and a blank separator line. The -1ms on the end timestamp avoids
// overlapping the next cue's start, matching the original.
type SRTEncoder struct {
	w       io.Writer
	counter int
}

// NewSRTEncoder wraps w for SRT output.
func NewSRTEncoder(w io.Writer) *SRTEncoder {
	return &SRTEncoder{w: w}
}

// WriteCue emits one cue; empty cues are silently dropped, matching the
// original's "prevent writing empty screens" guard.
func (e *SRTEncoder) WriteCue(c Cue) error {
	if c.empty() {
		return nil
	}
	e.counter++
	h1, m1, s1, ms1 := splitTime(c.Start)
	h2, m2, s2, ms2 := splitTime(c.End - time.Millisecond)
	if _, err := fmt.Fprintf(e.w, "%d\r\n", e.counter); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "%02d:%02d:%02d,%03d --> %02d:%02d:%02d,%03d\r\n",
		h1, m1, s1, ms1, h2, m2, s2, ms2); err != nil {
		return err
	}
	for _, line := range c.Lines {
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(e.w, "%s\r\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(e.w, "\r\n")
	return err
}
