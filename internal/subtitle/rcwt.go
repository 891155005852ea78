package subtitle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// RCWTHeader is CCExtractor's own "raw captions with timing" interchange
// format magic + version, per spec.md §4.2: "11-byte header
// CC CC ED CC 00 50 00 01 00 00 00".
var RCWTHeader = [11]byte{0xCC, 0xCC, 0xED, 0xCC, 0x00, 0x50, 0x00, 0x01, 0x00, 0x00, 0x00}

// RCWTTriplet is one decoded caption byte-pair plus its cc_valid/cc_type
// tag, the unit an RCWT block is built from.
type RCWTTriplet struct {
	CCValid bool
	CCType  uint8 // 0-3: field-1, field-2, DTVCC packet data, DTVCC packet start
	B1, B2  byte
}

// RCWTEncoder writes the RCWT wire format: the 11-byte header once,
// then blocks of (u64 fts_le, u16 count, count*(u8 tag, u8 b1, u8 b2)).
type RCWTEncoder struct {
	w          io.Writer
	headerDone bool
}

// NewRCWTEncoder wraps w for RCWT output.
func NewRCWTEncoder(w io.Writer) *RCWTEncoder {
	return &RCWTEncoder{w: w}
}

// WriteBlock emits one timed block of triplets at the given FTS
// (milliseconds from stream start).
func (e *RCWTEncoder) WriteBlock(fts int64, triplets []RCWTTriplet) error {
	if !e.headerDone {
		if _, err := e.w.Write(RCWTHeader[:]); err != nil {
			return err
		}
		e.headerDone = true
	}
	var hdr [10]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(fts))
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(len(triplets)))
	if _, err := e.w.Write(hdr[:]); err != nil {
		return err
	}
	for _, t := range triplets {
		tag := (t.CCType & 0x03)
		if t.CCValid {
			tag |= 0x04
		}
		if _, err := e.w.Write([]byte{tag, t.B1, t.B2}); err != nil {
			return err
		}
	}
	return nil
}

// ErrMissingRCWTHeader is returned when the stream does not begin with
// the RCWT magic, corresponding to CCExtractor's MissingRcwtHeader exit
// code.
var ErrMissingRCWTHeader = errors.New("rcwt: missing or malformed header")

// RCWTBlock is one decoded block: a timestamp and its triplets.
type RCWTBlock struct {
	FTS      int64
	Triplets []RCWTTriplet
}

// RCWTReader reads the RCWT wire format back into blocks, used both as
// an input demultiplexer and for round-trip verification (spec.md §8
// invariant 7: "feeding the RCWT output of a run back into the pipeline
// in RCWT-input mode yields a byte-identical RCWT output").
type RCWTReader struct {
	r          io.Reader
	headerSeen bool
}

// NewRCWTReader wraps r for RCWT input.
func NewRCWTReader(r io.Reader) *RCWTReader {
	return &RCWTReader{r: r}
}

func (d *RCWTReader) readHeader() error {
	var hdr [11]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrMissingRCWTHeader
		}
		return err
	}
	if !bytes.Equal(hdr[:], RCWTHeader[:]) {
		return ErrMissingRCWTHeader
	}
	d.headerSeen = true
	return nil
}

// ReadBlock reads the next block. Truncation mid-triplet at EOF is
// tolerated per spec.md §4.8 ("reader stops at EOF mid-triplet without
// error") and reported as io.EOF.
func (d *RCWTReader) ReadBlock() (RCWTBlock, error) {
	if !d.headerSeen {
		if err := d.readHeader(); err != nil {
			return RCWTBlock{}, err
		}
	}
	var blockHdr [10]byte
	if _, err := io.ReadFull(d.r, blockHdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return RCWTBlock{}, io.EOF
		}
		return RCWTBlock{}, err
	}
	fts := int64(binary.LittleEndian.Uint64(blockHdr[0:8]))
	count := binary.LittleEndian.Uint16(blockHdr[8:10])

	block := RCWTBlock{FTS: fts, Triplets: make([]RCWTTriplet, 0, count)}
	for i := uint16(0); i < count; i++ {
		var raw [3]byte
		if _, err := io.ReadFull(d.r, raw[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return block, io.EOF
			}
			return block, err
		}
		block.Triplets = append(block.Triplets, RCWTTriplet{
			CCValid: raw[0]&0x04 != 0,
			CCType:  raw[0] & 0x03,
			B1:      raw[1],
			B2:      raw[2],
		})
	}
	return block, nil
}
