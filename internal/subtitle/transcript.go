package subtitle

import (
	"fmt"
	"io"
)

// Mode labels a CEA-608 caption mode for the transcript "mode" column.
type Mode string

const (
	ModePopOn  Mode = "POP"
	ModePaint  Mode = "PAI"
	ModeText   Mode = "TXT"
	ModeRollUp Mode = "RU"
)

// TranscriptColumns selects which columns TranscriptEncoder prints, per
// spec.md §4.8: "configurable columns: start-time, end-time, CC source,
// mode, then text."
type TranscriptColumns struct {
	StartTime bool
	EndTime   bool
	Source    bool
	Mode      bool
}

// TranscriptLine is one non-empty 608/708 row plus its provenance.
type TranscriptLine struct {
	Timing Cue
	Source string // "CC1".."CC4" or an ISO-639 language code for DVB
	Mode   Mode
	Text   string
}

// TranscriptEncoder writes the WebVTT-like pipe-separated transcript
// format: "one line per non-empty row."
type TranscriptEncoder struct {
	w       io.Writer
	columns TranscriptColumns
}

// NewTranscriptEncoder wraps w, emitting the requested columns.
func NewTranscriptEncoder(w io.Writer, columns TranscriptColumns) *TranscriptEncoder {
	return &TranscriptEncoder{w: w, columns: columns}
}

// WriteLine emits one pipe-separated transcript row.
func (e *TranscriptEncoder) WriteLine(l TranscriptLine) error {
	var fields []string
	if e.columns.StartTime {
		h, m, s, ms := splitTime(l.Timing.Start)
		fields = append(fields, fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms))
	}
	if e.columns.EndTime {
		h, m, s, ms := splitTime(l.Timing.End)
		fields = append(fields, fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms))
	}
	if e.columns.Source {
		fields = append(fields, l.Source)
	}
	if e.columns.Mode {
		fields = append(fields, string(l.Mode))
	}
	fields = append(fields, l.Text)
	for i, f := range fields {
		if i > 0 {
			if _, err := io.WriteString(e.w, "|"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(e.w, f); err != nil {
			return err
		}
	}
	_, err := io.WriteString(e.w, "\n")
	return err
}

// WriteXDSEvent emits an XDS program-name/call-letters change as a
// "|XDS|..." transcript line, per spec.md's example
// "|XDS|CUR|Program name: Star Trek".
func (e *TranscriptEncoder) WriteXDSEvent(class, message string) error {
	_, err := fmt.Fprintf(e.w, "|XDS|%s|%s\n", class, message)
	return err
}
