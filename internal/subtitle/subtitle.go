// Package subtitle turns decoded CEA-608/708 screens into the output
// subtitle formats spec.md §4.8 names: SRT, SAMI, SMPTE-TT, transcript,
// RCWT, and spupng. Grounded on CCExtractor's 608_srt.c / 608_sami.c /
// 608_smptett.c / 608_spupng.c writers.
package subtitle

import "time"

// Format identifies an output subtitle format.
type Format int

const (
	FormatSRT Format = iota
	FormatSAMI
	FormatSMPTETT
	FormatTranscript
	FormatRCWT
	FormatRaw
	FormatSpuPNG
	FormatNull
)

// Cue is a single displayable caption screen with a start/end offset
// from the start of the stream, equivalent to CCExtractor's
// eia608_screen plus timing (write_cc_buffer_as_*'s ms_start/ms_end).
type Cue struct {
	Start time.Duration
	End   time.Duration
	// Lines holds one text line per used row, top to bottom, already
	// flattened from the 608/708 screen grid (case correction and
	// autodash applied upstream of the encoder per spec.md §4.8).
	Lines []string
}

func (c Cue) empty() bool {
	if len(c.Lines) == 0 {
		return true
	}
	for _, l := range c.Lines {
		if l != "" {
			return false
		}
	}
	return true
}

// Kind distinguishes the payload shape of a CcSubtitle record, per
// spec.md §4.6: "CcSubtitle { kind, start_ms, end_ms, payload }".
type Kind int

const (
	KindCEA608Screen Kind = iota
	KindCEA708Screen
	KindBitmap
	KindXDS
)

// Rect is one paletted DVB-subtitle bitmap rectangle composited onto
// the bounding box described by spec.md §4.9.
type Rect struct {
	X, Y, Width, Height int
	Palette             []color608
	Indices             []byte // Width*Height indexed pixels
}

type color608 struct {
	R, G, B, A uint8
}

// CcSubtitle is the single record type every encoder in this package
// consumes, unifying 608/708 text screens, XDS events, and DVB bitmap
// rectangles behind one start/end-tagged envelope.
type CcSubtitle struct {
	Kind     Kind
	StartMS  int64
	EndMS    int64
	Channel  int // CC1-CC4 / DTVCC service number
	Lines    []string
	XDSClass string
	XDSText  string
	Rects    []Rect
}

// Cue converts the text-bearing fields of a CcSubtitle to a Cue for the
// text encoders (SRT/SAMI/SMPTE-TT/transcript).
func (s CcSubtitle) Cue() Cue {
	return Cue{
		Start: time.Duration(s.StartMS) * time.Millisecond,
		End:   time.Duration(s.EndMS) * time.Millisecond,
		Lines: s.Lines,
	}
}

func splitTime(d time.Duration) (h, m, s, ms int) {
	if d < 0 {
		d = 0
	}
	total := d.Milliseconds()
	ms = int(total % 1000)
	total /= 1000
	s = int(total % 60)
	total /= 60
	m = int(total % 60)
	total /= 60
	h = int(total)
	return
}
