package subtitle

import (
	"fmt"
	"io"
	"time"
)

// SMPTETTEncoder writes a minimally-compliant W3C TTML / SMPTE-TT
// (ST 2052-1) document, ported from write_stringz_as_smptett plus the
// document header/footer in cc_encoders_common.c.
type SMPTETTEncoder struct {
	w          io.Writer
	headerDone bool
}

// NewSMPTETTEncoder wraps w for SMPTE-TT output.
func NewSMPTETTEncoder(w io.Writer) *SMPTETTEncoder {
	return &SMPTETTEncoder{w: w}
}

const smptettHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n<tt xmlns=\"http://www.w3.org/ns/ttml\" xml:lang=\"en\">\n<body>\n<div>\n"

// WriteCue emits one <p begin=... end=...> block.
func (e *SMPTETTEncoder) WriteCue(c Cue) error {
	if !e.headerDone {
		if _, err := io.WriteString(e.w, smptettHeader); err != nil {
			return err
		}
		e.headerDone = true
	}
	if c.empty() {
		return nil
	}
	h1, m1, s1, ms1 := splitTime(c.Start)
	h2, m2, s2, ms2 := splitTime(c.End - time.Millisecond)
	if _, err := fmt.Fprintf(e.w, "<p begin=\"%02d:%02d:%02d,%03d\" end=\"%02d:%02d:%02d.%03d\">\r\n",
		h1, m1, s1, ms1, h2, m2, s2, ms2); err != nil {
		return err
	}
	for i, line := range c.Lines {
		if line == "" {
			continue
		}
		if i > 0 {
			if _, err := io.WriteString(e.w, "<br/>\r\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(e.w, line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(e.w, "</p>\n")
	return err
}

// Close writes the closing document tags.
func (e *SMPTETTEncoder) Close() error {
	_, err := io.WriteString(e.w, "</div>\n</body>\n</tt>\n")
	return err
}
