package subtitle

import (
	"fmt"
	"io"
	"strings"
)

// SAMIEncoder writes Synchronized Accessible Media Interchange (.smi)
// cues, ported from write_stringz_as_sami: a <SYNC start=ms><P
// class="UNKNOWNCC"> block per cue, lines joined with <br>, followed by
// a closing blank-screen <SYNC> at the cue's end time.
type SAMIEncoder struct {
	w          io.Writer
	headerDone bool
}

// NewSAMIEncoder wraps w for SAMI output.
func NewSAMIEncoder(w io.Writer) *SAMIEncoder {
	return &SAMIEncoder{w: w}
}

const samiHeader = "<SAMI><HEAD><STYLE TYPE=\"text/css\"><!--\r\nP {margin-left: 16pt; margin-right: 16pt; margin-bottom: 16pt; margin-top: 4pt;\r\ntext-align: center; font-size: 18pt; font-family: Tahoma; font-weight: bold; color: #f0f0f0;}\r\n.UNKNOWNCC {Name: Unknown; lang: en-US; SAMIType: CC;}\r\n--></STYLE></HEAD><BODY>\r\n"

// WriteCue emits one cue, writing the SAMI document header before the
// first cue if it hasn't been written yet.
func (e *SAMIEncoder) WriteCue(c Cue) error {
	if !e.headerDone {
		if _, err := io.WriteString(e.w, samiHeader); err != nil {
			return err
		}
		e.headerDone = true
	}
	if c.empty() {
		return nil
	}
	if _, err := fmt.Fprintf(e.w, "<SYNC start=%d><P class=\"UNKNOWNCC\">\r\n", c.Start.Milliseconds()); err != nil {
		return err
	}
	text := strings.Join(c.Lines, "<br>\r\n")
	if _, err := io.WriteString(e.w, text); err != nil {
		return err
	}
	if _, err := io.WriteString(e.w, "</P></SYNC>\r\n"); err != nil {
		return err
	}
	_, err := fmt.Fprintf(e.w, "<SYNC start=%d><P class=\"UNKNOWNCC\">&nbsp;</P></SYNC>\r\n\r\n", c.End.Milliseconds())
	return err
}

// Close writes the closing document tags.
func (e *SAMIEncoder) Close() error {
	_, err := io.WriteString(e.w, "</BODY></SAMI>\r\n")
	return err
}
