package demux

import (
	"math"
	"testing"
)

func startCode(code byte, payload []byte) []byte {
	out := []byte{0, 0, 1, code}
	return append(out, payload...)
}

func picturePayload(tref int, codingType byte) []byte {
	b0 := byte((tref >> 2) & 0xFF)
	b1 := byte((tref&0x03)<<6) | (codingType&0x07)<<3
	return []byte{b0, b1, 0, 0}
}

func ga94UserData(triplets []CCTriplet) []byte {
	out := []byte("GA94")
	out = append(out, 0x03)
	out = append(out, 0x40|byte(len(triplets)&0x1F))
	out = append(out, 0xFF)
	for _, t := range triplets {
		marker := byte(0xF8) | (t.CCType & 0x03)
		if t.CCValid {
			marker |= 0x04
		}
		out = append(out, marker, t.B1, t.B2)
	}
	return out
}

func TestScanMPEG2StartCodesSplitsPayloads(t *testing.T) {
	data := append(startCode(mpeg2StartSequenceHeader, []byte{1, 2, 3, 4}),
		startCode(mpeg2StartPicture, []byte{5, 6})...)

	matches := scanMPEG2StartCodes(data)
	if len(matches) != 2 {
		t.Fatalf("got %d start codes, want 2", len(matches))
	}
	if matches[0].code != mpeg2StartSequenceHeader || string(matches[0].payload) != "\x01\x02\x03\x04" {
		t.Errorf("sequence header match = %+v", matches[0])
	}
	if matches[1].code != mpeg2StartPicture || string(matches[1].payload) != "\x05\x06" {
		t.Errorf("picture match = %+v", matches[1])
	}
}

func TestScanMPEG2StartCodesIgnoresLeadingJunk(t *testing.T) {
	data := append([]byte{0xDE, 0xAD}, startCode(mpeg2StartGOP, []byte{0x01})...)
	matches := scanMPEG2StartCodes(data)
	if len(matches) != 1 || matches[0].code != mpeg2StartGOP {
		t.Fatalf("matches = %+v, want one GOP match", matches)
	}
}

func TestMPEG2ScannerLatchesFrameRate(t *testing.T) {
	s := NewMPEG2Scanner()
	seq := startCode(mpeg2StartSequenceHeader, []byte{0, 0, 0, 0x04})
	s.Scan(seq)
	want := 30000.0 / 1001.0
	if math.Abs(s.FPS()-want) > 1e-9 {
		t.Errorf("FPS = %v, want %v", s.FPS(), want)
	}
}

func TestMPEG2ScannerExtractsTrefAndCaptions(t *testing.T) {
	s := NewMPEG2Scanner()

	iTriplets := []CCTriplet{{CCValid: true, CCType: 0, B1: 'I', B2: '1'}}
	pTriplets := []CCTriplet{{CCValid: true, CCType: 1, B1: 'P', B2: '1'}}
	bTriplets := []CCTriplet{{CCValid: true, CCType: 0, B1: 'B', B2: '1'}}

	var data []byte
	data = append(data, startCode(mpeg2StartPicture, picturePayload(0, pictureCodingI))...)
	data = append(data, startCode(mpeg2StartUserData, ga94UserData(iTriplets))...)
	data = append(data, startCode(mpeg2StartPicture, picturePayload(2, pictureCodingP))...)
	data = append(data, startCode(mpeg2StartUserData, ga94UserData(pTriplets))...)
	data = append(data, startCode(mpeg2StartPicture, picturePayload(1, pictureCodingB))...)
	data = append(data, startCode(mpeg2StartUserData, ga94UserData(bTriplets))...)

	frames := s.Scan(data)
	if len(frames) != 2 {
		t.Fatalf("Scan returned %d frames, want 2 (third still open)", len(frames))
	}
	if frames[0].tref != 0 || !frames[0].isAnchor {
		t.Errorf("frame 0 = %+v, want tref 0, anchor", frames[0])
	}
	if len(frames[0].triplets) != 1 || frames[0].triplets[0].B1 != 'I' {
		t.Errorf("frame 0 triplets = %+v", frames[0].triplets)
	}
	if frames[1].tref != 2 || !frames[1].isAnchor {
		t.Errorf("frame 1 = %+v, want tref 2, anchor", frames[1])
	}
	if len(frames[1].triplets) != 1 || frames[1].triplets[0].B1 != 'P' {
		t.Errorf("frame 1 triplets = %+v", frames[1].triplets)
	}

	flushed := s.Flush()
	if len(flushed) != 1 {
		t.Fatalf("Flush returned %d frames, want 1", len(flushed))
	}
	if flushed[0].tref != 1 || flushed[0].isAnchor {
		t.Errorf("flushed frame = %+v, want tref 1, non-anchor", flushed[0])
	}
	if len(flushed[0].triplets) != 1 || flushed[0].triplets[0].B1 != 'B' {
		t.Errorf("flushed frame triplets = %+v", flushed[0].triplets)
	}
}

func TestMPEG2ScannerFlushOnEmptyIsNoop(t *testing.T) {
	s := NewMPEG2Scanner()
	if got := s.Flush(); got != nil {
		t.Errorf("Flush on fresh scanner = %v, want nil", got)
	}
}

func TestMPEG2ScannerDisplayOrderViaReorderBuffer(t *testing.T) {
	s := NewMPEG2Scanner()

	frames := []struct {
		tref int
		code byte
		text byte
	}{
		{0, pictureCodingI, 'A'},
		{2, pictureCodingP, 'C'},
		{1, pictureCodingB, 'B'},
	}

	var flushed []ReorderedBlock
	for i, f := range frames {
		triplets := []CCTriplet{{CCValid: true, CCType: 0, B1: f.text}}
		if f.code == pictureCodingI || f.code == pictureCodingP {
			flushed = append(flushed, s.reorder.NewAnchor(f.tref)...)
		}
		flushed = append(flushed, s.reorder.Store(f.tref, int64(1000+i), triplets)...)
	}
	flushed = append(flushed, s.reorder.Flush()...)

	order := make([]byte, 0, len(flushed))
	for _, b := range flushed {
		order = append(order, b.Triplet.B1)
	}
	want := "ABC"
	if string(order) != want {
		t.Errorf("display order = %q, want %q", order, want)
	}
}
