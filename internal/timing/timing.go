// Package timing converts container/elementary-stream presentation
// timestamps into the monotonic frame-time-stamp (FTS) series the
// caption decoders key their screen start/end times to.
//
// It ports CCExtractor's set_fts()/get_fts() pair (timing.cpp): one
// [Engine] per elementary stream accumulates a PTS→FTS mapping that
// survives PTS rollover and detects/repairs reference-clock jumps.
package timing

import "log/slog"

// mpegClockFreq is the MPEG/PES system clock rate in Hz (90 kHz),
// i.e. the number of PTS ticks per second.
const mpegClockFreq = 90000

// ptsMax33 is 2^33, the width of the PTS field carried in a PES header.
const ptsMax33 = 1 << 33

// Field identifies which caption carrier a frame-time-stamp query is
// for. Each one accumulates its own per-frame caption-block counter,
// because NTSC can carry two field-1 and two field-2 caption pairs per
// frame, and 708 one packet-start per frame.
type Field int

const (
	FieldCC1 Field = iota + 1
	FieldCC2
	Field708
)

// StreamMode identifies the container/transport the PTS values came
// from. A handful of modes are known to already carry a reliable,
// monotonic timeline, so the big-PTS-change detector is disabled for them.
type StreamMode int

const (
	StreamModeGeneric StreamMode = iota
	StreamModeMcpoodlesRaw
	StreamModeRCWT
	StreamModeMP4
	StreamModeHexDump
	StreamModeElementary
)

func (m StreamMode) syncCheckDisabled() bool {
	switch m {
	case StreamModeMcpoodlesRaw, StreamModeRCWT, StreamModeMP4, StreamModeHexDump:
		return true
	default:
		return false
	}
}

// Engine tracks one elementary stream's presentation-timestamp timeline
// and derives the frame-time-stamp (FTS) series from it.
type Engine struct {
	log *slog.Logger

	mode       StreamMode
	noSync     bool
	captionGap bool

	// ptsSet mirrors CCExtractor's pts_set: 0 = no PTS seen yet, 1 =
	// min_pts must (re)synchronize on the next SetFrame, 2 = steady state.
	ptsSet int

	minPTS     int64
	syncPTS    int64
	ftsOffset  int64
	ftsNow     int64
	ftsMax     int64
	ftsGlobal  int64

	cbField1 int64
	cbField2 int64
	cb708    int64

	rolloverBits int64
	havePrevHigh bool
	prevHighBits uint8
}

// NewEngine creates an Engine for one elementary stream. If log is nil,
// slog.Default() is used.
func NewEngine(mode StreamMode, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:  log.With("component", "timing"),
		mode: mode,
	}
}

// SetNoSync disables the big-PTS-change rebase, matching the -nosync
// command-line switch: jumps are still detected and logged, but the
// timeline is never rebased to follow them.
func (e *Engine) SetNoSync(v bool) { e.noSync = v }

// SetCaptionGap tells the engine that the current gap in caption data
// is expected (e.g. a known hole in a dvr-ms/NTSC recording) and should
// not be treated as a reference-clock jump.
func (e *Engine) SetCaptionGap(v bool) { e.captionGap = v }

// SetGlobalOffset adds a fixed offset (in ms) to every FTS value
// returned, used when concatenating multiple input files into one
// continuous timeline (fts_global in the original).
func (e *Engine) SetGlobalOffset(ms int64) { e.ftsGlobal = ms }

// NormalizePTS folds a raw 33-bit PTS value into a monotonically
// increasing 64-bit tick count, detecting wraparound by watching the
// top 3 bits of the 33-bit field: a 0b111→0b000 transition means the
// clock wrapped forward, the reverse means a late B-frame arrived just
// before the wrap anchor.
func (e *Engine) NormalizePTS(raw33 uint64) int64 {
	raw33 &= ptsMax33 - 1
	high := uint8(raw33 >> 30)
	if e.havePrevHigh {
		if e.prevHighBits == 0b111 && high == 0b000 {
			e.rolloverBits++
		} else if e.prevHighBits == 0b000 && high == 0b111 {
			e.rolloverBits--
		}
	}
	e.havePrevHigh = true
	e.prevHighBits = high
	return int64(raw33) + e.rolloverBits*ptsMax33
}

// SetFrame is called exactly once per frame, with the frame's PTS
// (already rollover-normalized via NormalizePTS), temporal reference,
// frame rate, and whether it's an I-frame. It updates fts_now/fts_max
// for use by FTS.
func (e *Engine) SetFrame(pts int64, tref int, fps float64, isIFrame bool) {
	ptsJump := false

	if e.ptsSet == 2 {
		dif := (pts - e.syncPTS) / (mpegClockFreq / 1000) // ms
		if e.captionGap {
			dif = 0
		}
		if e.mode.syncCheckDisabled() {
			dif = 0
		}

		if dif < -200 || dif >= 5000 {
			e.log.Warn("reference clock changed abruptly",
				"diffMs", dif, "syncPTS", e.syncPTS, "currentPTS", pts)
			ptsJump = true

			if tref != 0 && !isIFrame {
				e.ftsNow = e.ftsMax
				e.log.Warn("pts change not on first frame, likely a broken GOP")
				return
			}
		}
	}

	if e.ptsSet != 0 {
		e.ptsSet = 2

		if pts < e.minPTS && !ptsJump {
			e.minPTS = pts
			e.syncPTS = pts - int64(float64(tref)*1000.0/fps)*(mpegClockFreq/1000)

			switch {
			case tref == 0:
				e.ftsOffset = 0
			default:
				e.ftsOffset = int64(float64(tref) * 1000.0 / fps)
			}
		}

		if ptsJump && !e.noSync {
			e.ftsOffset = e.ftsOffset +
				(e.syncPTS-e.minPTS)/(mpegClockFreq/1000)
			e.ftsMax = e.ftsOffset
			e.ptsSet = 1 // force min_pts to be re-synced
			e.syncPTS = pts - int64(float64(tref)*1000.0/fps)*(mpegClockFreq/1000)
			e.minPTS = e.syncPTS
			e.log.Info("timeline rebased", "newMinPTSMs", e.minPTS/(mpegClockFreq/1000), "ftsOffset", e.ftsOffset)
		}
	} else {
		e.ptsSet = 1
		e.minPTS = pts
	}

	if tref == 0 {
		e.syncPTS = pts
	}

	e.cbField1 = 0
	e.cbField2 = 0
	e.cb708 = 0

	e.ftsNow = (pts-e.minPTS)/(mpegClockFreq/1000) + e.ftsOffset
	if e.ftsNow > e.ftsMax {
		e.ftsMax = e.ftsNow
	}
}

// FTS returns the presentation time, in milliseconds, for the next
// caption block on the given field. It does not advance the field's
// caption-block counter — call Advance after consuming the value.
func (e *Engine) FTS(field Field) int64 {
	var cb int64
	switch field {
	case FieldCC1:
		cb = e.cbField1
	case FieldCC2:
		cb = e.cbField2
	case Field708:
		cb = e.cb708
	}
	return e.ftsNow + e.ftsGlobal + cb*1001/30
}

// Advance increments the caption-block counter for field, to be called
// once per caption triplet consumed from the current frame (NTSC can
// carry two field-1 and two field-2 pairs per frame).
func (e *Engine) Advance(field Field) {
	switch field {
	case FieldCC1:
		e.cbField1++
	case FieldCC2:
		e.cbField2++
	case Field708:
		e.cb708++
	}
}

// Now returns the frame-time-stamp of the frame last passed to
// SetFrame, with no per-field caption-block spread applied. Used when
// a caller needs a single timestamp for the whole frame rather than a
// per-triplet one, e.g. the MPEG-2 reorder buffer's anchor keys.
func (e *Engine) Now() int64 {
	return e.ftsNow + e.ftsGlobal
}

// FTSMax returns the maximum frame-time-stamp seen so far, the
// resolved "file duration so far" used for end-of-stream cue closing.
func (e *Engine) FTSMax() int64 {
	return e.ftsMax + e.ftsGlobal
}
