package demux

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/zsiec/ccextract/internal/cea608"
	"github.com/zsiec/ccextract/internal/cea708"
	"github.com/zsiec/ccextract/internal/mpegts"
	"github.com/zsiec/ccextract/internal/scte35"
	"github.com/zsiec/ccextract/internal/timing"
	"github.com/zsiec/ccextract/internal/xds"
	"github.com/zsiec/ccextract/media"
)

// defaultFrameRate is used to derive caption-block timing (§4.4's
// cb_fieldX*1001/30 spread) when no VUI/SPS timing_info has been parsed
// for the stream. 29.97fps (NTSC) is the common case for the legacy
// caption carriers (GA94, DVD CC, SCTE-20) this demuxer decodes.
const defaultFrameRate = 30000.0 / 1001.0

// CaptionFrame is one decoded, displayable caption event handed to
// downstream sinks (the live relay, or an internal/subtitle Cue
// builder), replacing the external ccx.CaptionFrame type this demuxer
// used to depend on.
type CaptionFrame struct {
	PTS     int64
	Text    string
	Channel int
}

// Serialize encodes the frame for the live caption track: a one-byte
// channel number followed by the UTF-8 caption text.
func (f *CaptionFrame) Serialize() []byte {
	out := make([]byte, 1+len(f.Text))
	out[0] = byte(f.Channel)
	copy(out[1:], f.Text)
	return out
}

const (
	streamTypeMPEG1Video      = 0x01
	streamTypeMPEG2Video      = 0x02
	streamTypeH264            = 0x1B
	streamTypeH265            = 0x24
	streamTypeAAC             = 0x0F
	scte35PIDWellKnown uint16 = 500
)

// AudioTrackInfo associates an MPEG-TS PID with its zero-based track index,
// used to distinguish multiple audio programs within a single transport stream.
type AudioTrackInfo struct {
	PID        uint16
	TrackIndex int
}

// StatsRecorder is the interface accepted by Demuxer for recording stream
// telemetry. The distribution layer's DemuxStats implements this interface.
type StatsRecorder interface {
	RecordVideoFrame(bytes int64, isKeyframe bool, pts int64)
	RecordAudioFrame(trackIdx int, bytes int64, pts int64, sampleRate, channels int)
	RecordCaption(channel int)
	RecordResolution(width, height int)
	RecordTimecode(tc string)
	RecordSCTE35(event SCTE35Event)
	RecordVideoCodec(codec string)
}

// SCTE35Event represents a parsed SCTE-35 splice information event extracted
// from the transport stream, including splice inserts, time signals, and
// segmentation descriptors used for ad insertion and content identification.
type SCTE35Event struct {
	PTS                int64   `json:"pts"`
	CommandType        string  `json:"commandType"`
	CommandTypeID      uint32  `json:"commandTypeId"`
	EventID            uint32  `json:"eventId,omitempty"`
	SegmentationType   string  `json:"segmentationType,omitempty"`
	SegmentationTypeID uint32  `json:"segmentationTypeId,omitempty"`
	Duration           float64 `json:"duration,omitempty"`
	OutOfNetwork       bool    `json:"outOfNetwork,omitempty"`
	Immediate          bool    `json:"immediate,omitempty"`
	Description        string  `json:"description"`
	ReceivedAt         int64   `json:"receivedAt"`
}

// Demuxer splits an MPEG-TS byte stream into video frames, audio frames,
// closed captions (CEA-608/708), and SCTE-35 events. It supports both H.264
// and H.265 video with multiple AAC audio tracks. Parsed output is delivered
// through channels obtained via the Video, Audio, and Captions methods.
type Demuxer struct {
	log            *slog.Logger
	reader         io.Reader
	videoCh        chan *media.VideoFrame
	audioCh        chan *media.AudioFrame
	captionCh      chan *CaptionFrame
	cea608Decs     map[int]*cea608.Decoder
	cea708Reasm    *cea708.Reassembler
	xdsDec         *xds.Decoder
	inXDSMode      bool
	timingEng      *timing.Engine
	rawCaptionSink func(fts int64, t CCTriplet)
	xdsSink        func(fts int64, ev xds.Event)
	scte35Sink     func(event SCTE35Event)
	videoPID       uint16
	audioPIDs      map[uint16]int
	audioTracks    []AudioTrackInfo
	pmtReady       chan struct{}
	pmtDone        bool
	isHEVC         bool
	isMPEG2        bool
	mpeg2Scanner   *MPEG2Scanner
	sps            []byte
	pps            []byte
	vps            []byte
	spsInfo        SPSInfo
	hevcSPSInfo    HEVCSPSInfo
	groupID        uint32
	videoCount     int64
	stats          StatsRecorder
}

// NewDemuxer creates a Demuxer that reads MPEG-TS packets from r. Call Run
// to begin demuxing and read from the Video, Audio, and Captions channels.
// If log is nil, slog.Default() is used.
func NewDemuxer(r io.Reader, log *slog.Logger) *Demuxer {
	if log == nil {
		log = slog.Default()
	}
	return &Demuxer{
		log:         log.With("component", "demux"),
		reader:      r,
		videoCh:     make(chan *media.VideoFrame, media.VideoBufferSize),
		audioCh:     make(chan *media.AudioFrame, media.AudioBufferSize),
		captionCh:   make(chan *CaptionFrame, media.CaptionBufferSize),
		audioPIDs:   make(map[uint16]int),
		pmtReady:    make(chan struct{}),
		cea708Reasm: cea708.NewReassembler(),
		xdsDec:      xds.NewDecoder(),
		timingEng:   timing.NewEngine(timing.StreamModeGeneric, log),
		cea608Decs: map[int]*cea608.Decoder{
			1: cea608.NewDecoder(cea608.Options{Channel: 1}),
			2: cea608.NewDecoder(cea608.Options{Channel: 2}),
			// CC3/CC4 are channels 1/2 of field 2.
			3: cea608.NewDecoder(cea608.Options{Channel: 1}),
			4: cea608.NewDecoder(cea608.Options{Channel: 2}),
		},
	}
}

// Video returns the channel on which parsed video frames are delivered.
func (d *Demuxer) Video() <-chan *media.VideoFrame {
	return d.videoCh
}

// Audio returns the channel on which parsed audio frames are delivered.
func (d *Demuxer) Audio() <-chan *media.AudioFrame {
	return d.audioCh
}

// Captions returns the channel on which decoded CEA-608/708 caption frames
// are delivered.
func (d *Demuxer) Captions() <-chan *CaptionFrame {
	return d.captionCh
}

// AudioTrackChannels returns metadata for all discovered audio tracks.
func (d *Demuxer) AudioTrackChannels() []AudioTrackInfo {
	return d.audioTracks
}

// PMTReady returns a channel that is closed once the first PMT has been
// parsed and all PID-to-track mappings are established.
func (d *Demuxer) PMTReady() <-chan struct{} {
	return d.pmtReady
}

// SetStats attaches a StatsRecorder that receives telemetry callbacks for
// every video frame, audio frame, caption, and SCTE-35 event processed.
func (d *Demuxer) SetStats(s StatsRecorder) {
	d.stats = s
}

// SetRawCaptionSink attaches a callback invoked for every cc_data()
// triplet (NTSC field 1/2 or DTVCC) as it's decoded, before 608/708
// decoding consumes it — the raw feed the RCWT encoder (internal/
// subtitle) writes back out verbatim per spec.md §4.8.
func (d *Demuxer) SetRawCaptionSink(sink func(fts int64, t CCTriplet)) {
	d.rawCaptionSink = sink
}

func (d *Demuxer) emitRaw(fts int64, t CCTriplet) {
	if d.rawCaptionSink != nil {
		d.rawCaptionSink(fts, t)
	}
}

// SetXDSSink attaches a callback invoked for every completed XDS
// packet (program name, call letters, or any other class/type), for
// the Notifier/transcript glue spec.md §4.7 describes.
func (d *Demuxer) SetXDSSink(sink func(fts int64, ev xds.Event)) {
	d.xdsSink = sink
}

// SetSCTE35Sink attaches a callback invoked for every decoded SCTE-35
// splice_info_section, for the Notifier.SCTE35 passthrough spec.md §6
// describes. Independent of StatsRecorder: batch callers that never set
// a StatsRecorder still get SCTE-35 events through this sink.
func (d *Demuxer) SetSCTE35Sink(sink func(event SCTE35Event)) {
	d.scte35Sink = sink
}

// FTSMax returns the highest frame-time-stamp observed so far, in
// microseconds, matching the units CaptionFrame.PTS and the raw
// caption sink use. Batch callers use it to close out a still-open
// cue at end of stream.
func (d *Demuxer) FTSMax() int64 {
	return d.timingEng.FTSMax() * 1000
}

// Run starts the demuxing loop, reading MPEG-TS packets from the underlying
// reader until EOF or context cancellation. Parsed frames are sent to the
// Video, Audio, and Captions channels. Run closes all output channels on return.
func (d *Demuxer) Run(ctx context.Context) error {
	defer close(d.videoCh)
	defer close(d.audioCh)
	defer close(d.captionCh)

	scte35Parser := func(ps []*mpegts.Packet) (ds []*mpegts.DemuxerData, skip bool, err error) {
		if len(ps) == 0 {
			return nil, false, nil
		}
		if ps[0].Header.PID != scte35PIDWellKnown {
			return nil, false, nil
		}
		var payload []byte
		for _, p := range ps {
			payload = append(payload, p.Payload...)
		}
		if len(payload) > 0 && payload[0] == 0x00 {
			payload = payload[1:]
		}
		if len(payload) < 3 {
			return nil, true, nil
		}
		sectionLen := int(payload[1]&0x0F)<<8 | int(payload[2])
		totalLen := 3 + sectionLen
		if totalLen > len(payload) {
			totalLen = len(payload)
		}
		d.handleSCTE35(payload[:totalLen])
		return nil, true, nil
	}

	dmx := mpegts.NewDemuxer(ctx, d.reader,
		mpegts.DemuxerOptPacketSize(188),
		mpegts.DemuxerOptPacketsParser(scte35Parser),
	)

	for {
		data, err := dmx.NextData()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			d.log.Debug("skipping corrupt packet", "error", err)
			continue
		}

		if data.PMT != nil {
			audioIdx := len(d.audioTracks)
			for _, es := range data.PMT.ElementaryStreams {
				switch es.StreamType {
				case streamTypeH264:
					if d.videoPID == 0 {
						d.videoPID = es.ElementaryPID
						d.isHEVC = false
						d.log.Info("found video PID", "pid", es.ElementaryPID, "codec", "H.264")
					}
				case streamTypeH265:
					if d.videoPID == 0 {
						d.videoPID = es.ElementaryPID
						d.isHEVC = true
						d.log.Info("found video PID", "pid", es.ElementaryPID, "codec", "H.265")
					}
				case streamTypeMPEG1Video, streamTypeMPEG2Video:
					if d.videoPID == 0 {
						d.videoPID = es.ElementaryPID
						d.isMPEG2 = true
						d.mpeg2Scanner = NewMPEG2Scanner()
						d.log.Info("found video PID", "pid", es.ElementaryPID, "codec", "MPEG-2")
					}
				case streamTypeAAC:
					if _, exists := d.audioPIDs[es.ElementaryPID]; !exists {
						d.audioPIDs[es.ElementaryPID] = audioIdx
						d.audioTracks = append(d.audioTracks, AudioTrackInfo{
							PID:        es.ElementaryPID,
							TrackIndex: audioIdx,
						})
						d.log.Info("found audio PID", "pid", es.ElementaryPID, "trackIndex", audioIdx)
						audioIdx++
					}
				}
			}
			if !d.pmtDone {
				d.pmtDone = true
				if d.stats != nil && d.videoPID != 0 {
					switch {
					case d.isMPEG2:
						d.stats.RecordVideoCodec("MPEG-2")
					case d.isHEVC:
						d.stats.RecordVideoCodec("H.265")
					default:
						d.stats.RecordVideoCodec("H.264")
					}
				}
				close(d.pmtReady)
			}
			continue
		}

		if data.PES == nil {
			continue
		}

		pid := data.FirstPacket.Header.PID

		if pid == d.videoPID {
			d.handleVideo(ctx, data.PES)
		} else if trackIdx, ok := d.audioPIDs[pid]; ok {
			d.handleAudio(ctx, data.PES, trackIdx)
		}
	}
}

func (d *Demuxer) handleVideo(ctx context.Context, pes *mpegts.PESData) {
	if len(pes.Data) == 0 {
		return
	}

	var pts, dts int64
	var pts90k int64
	var havePTS bool
	if pes.Header != nil && pes.Header.OptionalHeader != nil {
		if pes.Header.OptionalHeader.PTS != nil {
			pts90k = pes.Header.OptionalHeader.PTS.Base
			havePTS = true
			pts = pts90k * 1000000 / 90000
		}
		if pes.Header.OptionalHeader.DTS != nil {
			dts = pes.Header.OptionalHeader.DTS.Base * 1000000 / 90000
		} else {
			dts = pts
		}
	}

	if d.isMPEG2 {
		isKeyframe := false
		if havePTS {
			isKeyframe = d.handleVideoMPEG2(ctx, pes.Data, pts90k)
		}
		d.buildAndEmitFrame(ctx, isKeyframe, [][]byte{pes.Data}, "mpeg2", pts, dts)
		return
	}

	if havePTS {
		isKeyframe := false
		if d.isHEVC {
			for _, nalu := range ParseAnnexBHEVC(pes.Data) {
				if IsHEVCKeyframe(nalu.Type) || IsHEVCSPS(nalu.Type) {
					isKeyframe = true
					break
				}
			}
		} else {
			for _, nalu := range ParseAnnexB(pes.Data) {
				if nalu.Type == NALTypeIDR || IsSPS(nalu.Type) {
					isKeyframe = true
					break
				}
			}
		}
		// pic_order_cnt is not decoded for H.264/HEVC and these frames
		// bypass the reorder buffer, so every frame is treated as tref 0.
		d.timingEng.SetFrame(d.timingEng.NormalizePTS(uint64(pts90k)), 0, defaultFrameRate, isKeyframe)
	}

	if d.isHEVC {
		d.handleVideoHEVC(ctx, pes.Data, pts, dts)
	} else {
		d.handleVideoH264(ctx, pes.Data, pts, dts)
	}
}

// ftsForField returns the presentation time, in microseconds, for the
// next caption triplet on field, then advances that field's per-frame
// caption-block counter.
func (d *Demuxer) ftsForField(field timing.Field) int64 {
	ms := d.timingEng.FTS(field)
	d.timingEng.Advance(field)
	return ms * 1000
}

func (d *Demuxer) handleVideoH264(ctx context.Context, data []byte, pts, dts int64) {
	nalus := ParseAnnexB(data)
	if len(nalus) == 0 {
		return
	}

	isKeyframe := false
	var naluBytes [][]byte

	for _, nalu := range nalus {
		// Skip AUD and filler data NALUs — unnecessary for clients.
		if nalu.Type == NALTypeAUD || nalu.Type == NALTypeFillerData {
			continue
		}

		switch {
		case IsSPS(nalu.Type):
			d.sps = make([]byte, len(nalu.Data))
			copy(d.sps, nalu.Data)
			isKeyframe = true
			if info, err := ParseSPS(nalu.Data); err == nil {
				d.spsInfo = info
				if d.stats != nil {
					d.stats.RecordResolution(info.Width, info.Height)
				}
			}
		case IsPPS(nalu.Type):
			d.pps = make([]byte, len(nalu.Data))
			copy(d.pps, nalu.Data)
		case IsKeyframe(nalu.Type):
			isKeyframe = true
		case nalu.Type == NALTypeSEI:
			if d.stats != nil && d.spsInfo.PicStructPresent {
				if tc, ok := ParsePicTimingSEI(nalu.Data, d.spsInfo); ok {
					d.stats.RecordTimecode(tc.String())
				}
			}

			d.handleCaptionSEI(ctx, nalu.Data, 1)
		}

		annexB := make([]byte, 4+len(nalu.Data))
		annexB[0] = 0
		annexB[1] = 0
		annexB[2] = 0
		annexB[3] = 1
		copy(annexB[4:], nalu.Data)
		naluBytes = append(naluBytes, annexB)
	}

	d.buildAndEmitFrame(ctx, isKeyframe, naluBytes, "h264", pts, dts)
}

func (d *Demuxer) handleVideoHEVC(ctx context.Context, data []byte, pts, dts int64) {
	nalus := ParseAnnexBHEVC(data)
	if len(nalus) == 0 {
		return
	}

	isKeyframe := false
	var naluBytes [][]byte

	for _, nalu := range nalus {
		// Skip AUD and filler data NALUs — unnecessary for clients.
		if nalu.Type == HEVCNALAUD || nalu.Type == HEVCNALFillerData {
			continue
		}

		switch {
		case IsHEVCVPS(nalu.Type):
			d.vps = make([]byte, len(nalu.Data))
			copy(d.vps, nalu.Data)
		case IsHEVCSPS(nalu.Type):
			d.sps = make([]byte, len(nalu.Data))
			copy(d.sps, nalu.Data)
			if info, err := ParseHEVCSPS(nalu.Data); err == nil {
				d.hevcSPSInfo = info
				if d.stats != nil {
					d.stats.RecordResolution(info.Width, info.Height)
				}
			}
		case IsHEVCPPS(nalu.Type):
			d.pps = make([]byte, len(nalu.Data))
			copy(d.pps, nalu.Data)
		case IsHEVCKeyframe(nalu.Type):
			isKeyframe = true
		case nalu.Type == HEVCNALSEIPrefix:
			if len(nalu.Data) > 2 {
				d.handleCaptionSEI(ctx, nalu.Data, 2)
			}
		}

		annexB := make([]byte, 4+len(nalu.Data))
		annexB[0] = 0
		annexB[1] = 0
		annexB[2] = 0
		annexB[3] = 1
		copy(annexB[4:], nalu.Data)
		naluBytes = append(naluBytes, annexB)
	}

	d.buildAndEmitFrame(ctx, isKeyframe, naluBytes, "h265", pts, dts)
}

func (d *Demuxer) buildAndEmitFrame(ctx context.Context, isKeyframe bool, naluBytes [][]byte, codec string, pts, dts int64) {
	if isKeyframe {
		d.groupID++
	}

	frame := &media.VideoFrame{
		PTS:        pts,
		DTS:        dts,
		IsKeyframe: isKeyframe,
		NALUs:      naluBytes,
		Codec:      codec,
		GroupID:    d.groupID,
	}

	if d.sps != nil {
		frame.SPS = make([]byte, len(d.sps))
		copy(frame.SPS, d.sps)
	}
	if d.pps != nil {
		frame.PPS = make([]byte, len(d.pps))
		copy(frame.PPS, d.pps)
	}
	if d.vps != nil {
		frame.VPS = make([]byte, len(d.vps))
		copy(frame.VPS, d.vps)
	}

	d.emitVideoFrame(ctx, frame, naluBytes, pts)
}

// handleCaptionSEI extracts the GA94 cc_data() triplets from a raw SEI
// NAL unit (header byte(s) still attached, emulation bytes still
// present) and feeds them to the CEA-608/CEA-708 decoders, per spec.md
// §4.6: cc_type 0/1 carry field-1/field-2 608 byte pairs, 2/3 carry
// DTVCC packet data/start markers for the 708 reassembler. headerLen is
// 1 for H.264, 2 for HEVC.
func (d *Demuxer) handleCaptionSEI(ctx context.Context, seiNALU []byte, headerLen int) {
	triplets := ExtractGA94FromSEINALU(seiNALU, headerLen)
	for _, t := range triplets {
		if !t.CCValid && t.CCType != ccTypeDTVCCStart {
			continue
		}
		var fts int64
		switch t.CCType {
		case ccTypeNTSCField1:
			fts = d.ftsForField(timing.FieldCC1)
		case ccTypeNTSCField2:
			fts = d.ftsForField(timing.FieldCC2)
		case ccTypeDTVCCData, ccTypeDTVCCStart:
			fts = d.ftsForField(timing.Field708)
		}
		if !d.dispatchTriplet(ctx, fts, t) {
			return
		}
	}
}

// dispatchTriplet routes one already-time-stamped cc_data() triplet to
// the 608/708 decoders (cc_type 0/1: field-1/field-2 608 byte pairs;
// 2/3: DTVCC packet data/start for the 708 reassembler) and to the raw
// caption sink, per spec.md §4.6. Shared by the per-frame SEI path
// (handleCaptionSEI) and the MPEG-2 user-data path
// (handleVideoMPEG2), which differ only in how fts is derived. Returns
// false if ctx was cancelled mid-dispatch.
func (d *Demuxer) dispatchTriplet(ctx context.Context, fts int64, t CCTriplet) bool {
	d.emitRaw(fts, t)
	switch t.CCType {
	case ccTypeNTSCField1:
		d.feed608(ctx, 0, t.B1, t.B2, fts)
	case ccTypeNTSCField2:
		d.feed608(ctx, 1, t.B1, t.B2, fts)
	case ccTypeDTVCCData, ccTypeDTVCCStart:
		events := d.cea708Reasm.AddTriplet(t.CCValid, int(t.CCType), t.B1, t.B2)
		for _, ev := range events {
			if ev.Text == "" {
				continue
			}
			channel := ev.ServiceNum + 6
			if d.stats != nil {
				d.stats.RecordCaption(channel)
			}
			frame := &CaptionFrame{PTS: fts, Text: ev.Text, Channel: channel}
			select {
			case d.captionCh <- frame:
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}

// handleVideoMPEG2 scans an MPEG-2 video PES payload for picture
// headers and caption user-data, routes recovered triplets through the
// scanner's reorder buffer, and dispatches them once their containing
// GOP is known (on the next I/P frame, per spec.md §4.3). Returns
// whether the last completed picture in this PES was an I/P anchor.
func (d *Demuxer) handleVideoMPEG2(ctx context.Context, data []byte, pts90k int64) bool {
	frames := d.mpeg2Scanner.Scan(data)
	lastAnchor := false
	for _, f := range frames {
		lastAnchor = f.isAnchor
		d.timingEng.SetFrame(d.timingEng.NormalizePTS(uint64(pts90k)), f.tref, d.mpeg2Scanner.FPS(), f.isAnchor)
		frameFTS := d.timingEng.Now()

		var flushed []ReorderedBlock
		if f.isAnchor {
			flushed = d.mpeg2Scanner.reorder.NewAnchor(f.tref)
		}
		valid := f.triplets[:0:0]
		for _, t := range f.triplets {
			if t.CCValid || t.CCType == ccTypeDTVCCStart {
				valid = append(valid, t)
			}
		}
		if len(valid) > 0 {
			flushed = append(flushed, d.mpeg2Scanner.reorder.Store(f.tref, frameFTS, valid)...)
		}

		for _, block := range flushed {
			if !d.dispatchTriplet(ctx, block.FTS*1000, block.Triplet) {
				return lastAnchor
			}
		}
	}
	return lastAnchor
}

// feed608 decodes one field-1/field-2 byte pair through every channel
// multiplexed onto that field (CC1/CC2 on field 1, CC3/CC4 on field 2).
// Field 2 also carries XDS: a sticky in_xds_mode flag (process608) routes
// bytes to the XDS decoder instead of the caption channels whenever a
// class/type start code (0x01-0x0E) was last seen, until the closing
// 0x0F byte or a normal caption control code (0x10-0x1F) resets it.
func (d *Demuxer) feed608(ctx context.Context, field int, b1, b2 byte, pts int64) {
	hi, lo := b1&0x7F, b2&0x7F

	if field == 1 {
		d.feed608Channels(ctx, 1, b1, b2, pts)
		return
	}

	if hi >= 0x01 && hi <= 0x0E {
		d.inXDSMode = true
	}
	if hi == 0x0F && d.inXDSMode {
		d.inXDSMode = false
		if ev, ok := d.xdsDec.EndOfPacket(lo); ok {
			d.reportXDSEvent(ev, pts)
		}
		return
	}
	if hi >= 0x10 && hi <= 0x1F {
		d.inXDSMode = false
		d.feed608Channels(ctx, 3, b1, b2, pts)
		return
	}
	if d.inXDSMode {
		d.xdsDec.ProcessBytes(hi, lo)
		return
	}
	d.feed608Channels(ctx, 3, b1, b2, pts)
}

// reportXDSEvent surfaces a decoded XDS packet; the pipeline's
// activity/Notifier glue (spec.md §4.7) observes program name and call
// letter changes through this hook.
func (d *Demuxer) reportXDSEvent(ev xds.Event, pts int64) {
	if ev.ProgramName != "" || ev.CallLetters != "" {
		d.log.Info("XDS program info", "programName", d.xdsDec.ProgramName(), "callLetters", d.xdsDec.CallLetters())
	}
	if d.xdsSink != nil {
		d.xdsSink(pts, ev)
	}
}

func (d *Demuxer) feed608Channels(ctx context.Context, base int, b1, b2 byte, pts int64) {
	for ch := base; ch <= base+1; ch++ {
		dec := d.cea608Decs[ch]
		if dec == nil {
			continue
		}
		sub := dec.Feed(b1, b2, pts)
		if sub == nil || sub.Screen == nil {
			continue
		}
		text := sub.Screen.Text()
		if text == "" {
			continue
		}
		if d.stats != nil {
			d.stats.RecordCaption(ch)
		}
		frame := &CaptionFrame{PTS: pts, Text: text, Channel: ch}
		select {
		case d.captionCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (d *Demuxer) emitVideoFrame(ctx context.Context, frame *media.VideoFrame, naluBytes [][]byte, pts int64) {
	d.videoCount++

	if d.stats != nil {
		var totalBytes int64
		for _, n := range naluBytes {
			totalBytes += int64(len(n))
		}
		d.stats.RecordVideoFrame(totalBytes, frame.IsKeyframe, pts)
	}

	select {
	case d.videoCh <- frame:
	case <-ctx.Done():
	}
}

func (d *Demuxer) handleSCTE35(section []byte) {
	if len(section) == 0 {
		return
	}

	sis, err := scte35.DecodeBytes(section)
	if err != nil {
		d.log.Warn("failed to parse SCTE-35", "error", err)
		return
	}

	event := SCTE35Event{
		ReceivedAt: time.Now().UnixMilli(),
	}

	if sis.SpliceCommand == nil {
		return
	}

	switch cmd := sis.SpliceCommand.(type) {
	case *scte35.SpliceInsert:
		event.CommandType = "splice_insert"
		event.CommandTypeID = scte35.SpliceInsertType
		event.EventID = cmd.SpliceEventID
		event.OutOfNetwork = cmd.OutOfNetworkIndicator
		event.Immediate = cmd.SpliceImmediateFlag
		if cmd.BreakDuration != nil {
			event.Duration = float64(cmd.BreakDuration.Duration) / 90000.0
		}
		if event.OutOfNetwork {
			event.Description = "Splice Out (Ad Insertion)"
		} else {
			event.Description = "Splice In (Return to Program)"
		}
	case *scte35.TimeSignal:
		event.CommandType = "time_signal"
		event.CommandTypeID = scte35.TimeSignalType
		if cmd.SpliceTime.PTSTime != nil {
			event.PTS = int64(*cmd.SpliceTime.PTSTime)
		}
		event.Description = "Time Signal"
	case *scte35.SpliceNull:
		event.CommandType = "splice_null"
		event.CommandTypeID = scte35.SpliceNullType
		event.Description = "Heartbeat"
	default:
		event.CommandType = "unknown"
		event.Description = "Unknown Command"
	}

	for _, desc := range sis.SpliceDescriptors {
		if sd, ok := desc.(*scte35.SegmentationDescriptor); ok {
			event.EventID = sd.SegmentationEventID
			event.SegmentationTypeID = sd.SegmentationTypeID
			event.SegmentationType = sd.Name()
			if sd.SegmentationDuration != nil {
				event.Duration = float64(*sd.SegmentationDuration) / 90000.0
			}
			event.Description = sd.Name()
			break
		}
	}

	d.log.Debug("SCTE-35", "command", event.CommandType, "desc", event.Description, "eventID", event.EventID)
	if d.stats != nil {
		d.stats.RecordSCTE35(event)
	}
	if d.scte35Sink != nil {
		d.scte35Sink(event)
	}
}

func (d *Demuxer) handleAudio(ctx context.Context, pes *mpegts.PESData, trackIndex int) {
	if len(pes.Data) == 0 {
		return
	}

	var pts int64
	if pes.Header != nil && pes.Header.OptionalHeader != nil {
		if pes.Header.OptionalHeader.PTS != nil {
			pts = pes.Header.OptionalHeader.PTS.Base * 1000000 / 90000
		}
	}

	aacFrames, err := ParseADTS(pes.Data)
	if err != nil {
		d.log.Warn("failed to parse ADTS", "error", err)
		return
	}

	for i, aac := range aacFrames {
		framePTS := pts
		if aac.SampleRate > 0 {
			framePTS += int64(i) * 1024 * 1_000_000 / int64(aac.SampleRate)
		}

		frame := &media.AudioFrame{
			PTS:        framePTS,
			Data:       aac.Data,
			SampleRate: aac.SampleRate,
			Channels:   aac.Channels,
			TrackIndex: trackIndex,
		}

		if d.stats != nil {
			d.stats.RecordAudioFrame(trackIndex, int64(len(aac.Data)), framePTS, aac.SampleRate, aac.Channels)
		}

		select {
		case d.audioCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}
