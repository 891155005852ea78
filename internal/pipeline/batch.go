package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zsiec/ccextract/internal/config"
	"github.com/zsiec/ccextract/internal/demux"
	"github.com/zsiec/ccextract/internal/subtitle"
	"github.com/zsiec/ccextract/internal/xds"
)

// cueSink is the subset of internal/subtitle's Cue-based encoders
// (SRT/SAMI/SMPTE-TT) the batch pipeline writes through.
type cueSink interface {
	WriteCue(subtitle.Cue) error
}

// closer is implemented by the encoders that need a trailing document
// footer (SAMI/SMPTE-TT/spupng).
type closer interface {
	Close() error
}

// positioner is implemented by internal/bytesource.Source; Batch uses
// it, when available, to report byte-level progress via Notifier.
type positioner interface {
	Position() int64
}

// Batch runs spec.md §5's single-threaded batch extraction loop: read
// the demuxer's caption channel, accumulate per-channel Cue boundaries,
// and hand finished cues to the configured subtitle encoder. It is the
// file-output counterpart to Pipeline's live relay, sharing the same
// Demuxer; video and audio frames are read and discarded, and SCTE-35
// events go only to the Notifier.
type Batch struct {
	log    *slog.Logger
	cfg    *config.Config
	demux  *demux.Demuxer
	notify config.Notifier
	pos    positioner

	sink       cueSink
	rawSink    *subtitle.RCWTEncoder
	transcript *subtitle.TranscriptEncoder
	closers    []closer

	pending     map[int]*subtitle.Cue
	screensDone int64
}

// NewBatch builds a Batch pipeline: a Demuxer reading from input, and
// whatever subtitle encoder cfg.WriteFormat selects writing to out.
// openAux is used only by WriteSpuPNG to create one PNG file per cue,
// named relative to cfg.OutputFilename; it may be nil for every other
// format.
func NewBatch(cfg *config.Config, input io.Reader, out io.Writer, notify config.Notifier, openAux func(name string) (io.WriteCloser, error)) (*Batch, error) {
	if notify == nil {
		notify = config.NopNotifier{}
	}
	log := slog.With("component", "batch")

	b := &Batch{
		log:     log,
		cfg:     cfg,
		notify:  notify,
		pending: make(map[int]*subtitle.Cue),
	}

	b.demux = demux.NewDemuxer(input, slog.With("component", "demuxer"))
	if p, ok := input.(positioner); ok {
		b.pos = p
	}

	switch cfg.WriteFormat {
	case config.WriteSRT:
		b.sink = subtitle.NewSRTEncoder(out)
	case config.WriteSAMI:
		enc := subtitle.NewSAMIEncoder(out)
		b.sink = enc
		b.closers = append(b.closers, enc)
	case config.WriteSmpteTT:
		enc := subtitle.NewSMPTETTEncoder(out)
		b.sink = enc
		b.closers = append(b.closers, enc)
	case config.WriteTranscript:
		b.transcript = subtitle.NewTranscriptEncoder(out, subtitle.TranscriptColumns{
			StartTime: true,
			EndTime:   true,
			Source:    true,
		})
	case config.WriteRCWT, config.WriteRaw, config.WriteDVDRaw:
		b.rawSink = subtitle.NewRCWTEncoder(out)
		b.demux.SetRawCaptionSink(func(fts int64, t demux.CCTriplet) {
			_ = b.rawSink.WriteBlock(fts/1000, []subtitle.RCWTTriplet{{
				CCValid: t.CCValid, CCType: t.CCType, B1: t.B1, B2: t.B2,
			}})
		})
	case config.WriteSpuPNG:
		if openAux == nil {
			return nil, fmt.Errorf("pipeline: spupng output requires a PNG file factory")
		}
		enc := subtitle.NewSpuPNGEncoder(out, cfg.OutputFilename, openAux)
		b.sink = enc
		b.closers = append(b.closers, enc)
	case config.WriteNull:
		// No sink; captions are still decoded (and, via stats, still
		// observable) but never rendered to an output format.
	default:
		return nil, fmt.Errorf("pipeline: unsupported write format %d", cfg.WriteFormat)
	}

	b.demux.SetXDSSink(func(fts int64, ev xds.Event) {
		b.handleXDSEvent(fts, ev)
	})
	b.demux.SetSCTE35Sink(func(ev demux.SCTE35Event) {
		b.notify.SCTE35(ev.Description, ev.PTS)
	})

	return b, nil
}

// Run drains the demuxer until EOF or context cancellation, writing
// cues as their boundaries close. It returns once the demuxer's
// caption channel closes, the demuxer errors out, cfg.ScreensToProcess
// is reached, or ctx is cancelled.
func (b *Batch) Run(ctx context.Context) error {
	demuxErr := make(chan error, 1)
	go func() {
		demuxErr <- b.demux.Run(ctx)
	}()

	captionCh := b.demux.Captions()
	videoCh := b.demux.Video()
	audioCh := b.demux.Audio()
	lastProgress := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case _, ok := <-videoCh:
			if !ok {
				videoCh = nil
			}

		case _, ok := <-audioCh:
			if !ok {
				audioCh = nil
			}

		case frame, ok := <-captionCh:
			if !ok {
				break loop
			}
			if b.filtered(frame.Channel) {
				continue
			}
			if !b.inExtractionWindow(frame.PTS) {
				continue
			}
			if err := b.handleFrame(frame); err != nil {
				return err
			}
			if b.cfg.ScreensToProcess > 0 && b.screensDone >= b.cfg.ScreensToProcess {
				b.log.Info("screens-to-process limit reached", "limit", b.cfg.ScreensToProcess)
				break loop
			}
			if b.pos != nil && time.Since(lastProgress) > time.Second {
				b.notify.Progress(b.pos.Position(), 0)
				lastProgress = time.Now()
			}

		case err := <-demuxErr:
			if err != nil {
				return fmt.Errorf("pipeline: demuxer: %w", err)
			}
			break loop
		}
	}

	return b.finish()
}

// filtered reports whether channel should be dropped given
// cfg.CCChannel (0 means "all channels pass").
func (b *Batch) filtered(channel int) bool {
	return b.cfg.CCChannel != 0 && channel != b.cfg.CCChannel
}

// inExtractionWindow reports whether ptsUS (microseconds) falls within
// cfg.ExtractionStart/ExtractionEnd, per spec.md §6. A zero End means
// "no upper bound."
func (b *Batch) inExtractionWindow(ptsUS int64) bool {
	t := time.Duration(ptsUS) * time.Microsecond
	if t < b.cfg.ExtractionStart {
		return false
	}
	if b.cfg.ExtractionEnd > 0 && t > b.cfg.ExtractionEnd {
		return false
	}
	return true
}

// handleFrame closes the previous cue on this frame's channel (its end
// time is this frame's start, per spec.md §8 invariant 3's gapless
// pop-on/roll-up boundary) and opens a new one.
func (b *Batch) handleFrame(frame *demux.CaptionFrame) error {
	start := time.Duration(frame.PTS) * time.Microsecond

	if prev, ok := b.pending[frame.Channel]; ok {
		prev.End = start
		if err := b.emitCue(frame.Channel, *prev); err != nil {
			return err
		}
	}

	if frame.Text == "" {
		delete(b.pending, frame.Channel)
		return nil
	}

	b.pending[frame.Channel] = &subtitle.Cue{
		Start: start,
		Lines: splitScreenText(frame.Text),
	}
	return nil
}

// emitCue writes a finished cue to the transcript encoder or the
// configured Cue encoder, or drops it silently for formats
// (RCWT/raw/null) with their own emission path or no output.
func (b *Batch) emitCue(channel int, cue subtitle.Cue) error {
	if cue.Start >= cue.End {
		return nil // invariant 1: start_ms < end_ms, or drop
	}
	b.screensDone++

	if b.transcript != nil {
		return b.transcript.WriteLine(subtitle.TranscriptLine{
			Timing: cue,
			Source: channelName(channel),
			Text:   joinLines(cue.Lines),
		})
	}
	if b.sink != nil {
		return b.sink.WriteCue(cue)
	}
	return nil
}

// handleXDSEvent surfaces a decoded XDS packet via the Notifier and,
// for the transcript format, as a "|XDS|..." line (spec.md §4.7/§4.8).
func (b *Batch) handleXDSEvent(fts int64, ev xds.Event) {
	if ev.ProgramName != "" {
		b.notify.ProgramName(ev.ProgramName)
	}
	if ev.CallLetters != "" {
		b.notify.CallLetters(ev.CallLetters)
	}
	if b.transcript == nil {
		return
	}
	switch {
	case ev.ProgramName != "":
		_ = b.transcript.WriteXDSEvent("CUR", fmt.Sprintf("Program name: %s", ev.ProgramName))
	case ev.CallLetters != "":
		_ = b.transcript.WriteXDSEvent("CUR", fmt.Sprintf("Call letters: %s", ev.CallLetters))
	}
}

// finish flushes any still-open cue at end of stream and closes
// document-footer encoders.
func (b *Batch) finish() error {
	endMS := b.demux.FTSMax()
	for ch, cue := range b.pending {
		cue.End = time.Duration(endMS) * time.Microsecond
		if err := b.emitCue(ch, *cue); err != nil {
			return err
		}
	}
	b.pending = make(map[int]*subtitle.Cue)

	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

func splitScreenText(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	lines = append(lines, text[start:])
	return lines
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += " "
		}
		out += l
	}
	return out
}

func channelName(channel int) string {
	switch {
	case channel >= 1 && channel <= 4:
		return fmt.Sprintf("CC%d", channel)
	case channel >= 7:
		return fmt.Sprintf("SVC%d", channel-6)
	default:
		return "XDS"
	}
}
