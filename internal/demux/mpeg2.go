package demux

// MPEG-2 video elementary-stream scanner: sequence/GOP/picture headers
// and user_data(), per spec.md §4.3. Ported from the start-code
// dispatch in ts_functions.c/es_userdata.c's handling of
// 00 00 01 B3/B8/00/B2.

const (
	mpeg2StartPicture        = 0x00
	mpeg2StartSequenceHeader = 0xB3
	mpeg2StartGOP            = 0xB8
	mpeg2StartUserData       = 0xB2
)

const (
	pictureCodingI = 1
	pictureCodingP = 2
	pictureCodingB = 3
)

// mpeg2FrameRateTable maps sequence_header's 4-bit frame_rate_code to
// frames per second, per the MPEG-2 Table 6-4 values CCExtractor's
// timing code assumes.
var mpeg2FrameRateTable = map[byte]float64{
	1: 24000.0 / 1001.0,
	2: 24,
	3: 25,
	4: 30000.0 / 1001.0,
	5: 30,
	6: 50,
	7: 60000.0 / 1001.0,
	8: 60,
}

// mpeg2Frame is one completed picture: its temporal_reference, whether
// it's an I/P anchor frame, and any caption triplets recovered from the
// user_data() that followed its picture_header.
type mpeg2Frame struct {
	tref     int
	isAnchor bool
	triplets []CCTriplet
}

// MPEG2Scanner walks an MPEG-2 video elementary stream for sequence,
// GOP, and picture headers, latching the frame rate and associating
// each picture's user_data() caption carriers with its
// temporal_reference so the reorder buffer can restore display order.
type MPEG2Scanner struct {
	userData *MPEG2UserDataDecoder
	reorder  *ReorderBuffer
	fps      float64

	haveFrame  bool
	curTref    int
	codingType byte
	pendingUD  []byte
}

// NewMPEG2Scanner creates a scanner defaulting to NTSC timing until a
// sequence header supplies a frame_rate_code.
func NewMPEG2Scanner() *MPEG2Scanner {
	return &MPEG2Scanner{
		userData: NewMPEG2UserDataDecoder(),
		reorder:  NewReorderBuffer(),
		fps:      defaultFrameRate,
	}
}

// FPS returns the frame rate last latched from a sequence header.
func (s *MPEG2Scanner) FPS() float64 { return s.fps }

// Scan processes one PES payload's worth of MPEG-2 video elementary
// stream bytes and returns every picture that was completed within it
// (i.e. every picture_header seen after the first), in decode order.
// The picture in progress when Scan returns carries over to the next
// call; use Flush to force it out at end of stream.
func (s *MPEG2Scanner) Scan(data []byte) []mpeg2Frame {
	var frames []mpeg2Frame
	for _, sc := range scanMPEG2StartCodes(data) {
		switch sc.code {
		case mpeg2StartSequenceHeader:
			if len(sc.payload) >= 4 {
				if fps, ok := mpeg2FrameRateTable[sc.payload[3]&0x0F]; ok {
					s.fps = fps
				}
			}
		case mpeg2StartPicture:
			if s.haveFrame {
				frames = append(frames, s.finishFrame())
			}
			if len(sc.payload) >= 2 {
				s.curTref = int(sc.payload[0])<<2 | int(sc.payload[1])>>6
				s.codingType = (sc.payload[1] >> 3) & 0x07
				s.haveFrame = true
			}
		case mpeg2StartUserData:
			s.pendingUD = append(s.pendingUD, sc.payload...)
		}
	}
	return frames
}

// Flush forces out any picture still in progress (e.g. at end of
// stream), so its user-data isn't silently dropped.
func (s *MPEG2Scanner) Flush() []mpeg2Frame {
	if !s.haveFrame {
		return nil
	}
	return []mpeg2Frame{s.finishFrame()}
}

func (s *MPEG2Scanner) finishFrame() mpeg2Frame {
	f := mpeg2Frame{
		tref:     s.curTref,
		isAnchor: s.codingType == pictureCodingI || s.codingType == pictureCodingP,
		triplets: s.userData.ParseUserData(s.pendingUD),
	}
	s.pendingUD = nil
	s.haveFrame = false
	return f
}

type mpeg2StartCodeMatch struct {
	code    byte
	payload []byte
}

// scanMPEG2StartCodes splits data into the runs of bytes following each
// 00 00 01 XX start code it finds. Bytes before the first start code
// are discarded, so a user_data() run that continues into the next PES
// keeps only the part that arrived before the PES boundary.
func scanMPEG2StartCodes(data []byte) []mpeg2StartCodeMatch {
	n := len(data)

	i := -1
	for k := 0; k+2 < n; k++ {
		if data[k] == 0 && data[k+1] == 0 && data[k+2] == 1 {
			i = k
			break
		}
	}
	if i < 0 {
		return nil
	}

	var out []mpeg2StartCodeMatch
	for i+3 < n {
		code := data[i+3]
		payloadStart := i + 4

		next := -1
		for k := payloadStart; k+2 < n; k++ {
			if data[k] == 0 && data[k+1] == 0 && data[k+2] == 1 {
				next = k
				break
			}
		}
		payloadEnd := n
		if next >= 0 {
			payloadEnd = next
		}
		if payloadEnd < payloadStart {
			payloadEnd = payloadStart
		}
		out = append(out, mpeg2StartCodeMatch{code: code, payload: data[payloadStart:payloadEnd]})

		if next < 0 {
			break
		}
		i = next
	}
	return out
}
