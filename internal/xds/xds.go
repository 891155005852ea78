// Package xds implements Extended Data Services decoding: the field-2
// side channel that carries program name, call letters, program
// description, content advisory, and time-of-day metadata alongside
// CEA-608 captions. Ported from CCExtractor's xds.c packet-buffer
// framing and checksum validation.
package xds

import "fmt"

// Class is the XDS packet class, derived from a start or continue code
// as (code-1)/2, per CEA-608 Annex C.
type Class int

const (
	ClassCurrent Class = iota
	ClassFuture
	ClassChannel
	ClassMisc
	ClassPublic
	ClassReserved
	ClassPrivate
	ClassEnd
)

const numBuffers = 9
const maxBytesPerPacket = 35

type buffer struct {
	inUse    bool
	class    Class
	typ      int
	bytes    []byte
}

// Event describes one successfully-validated XDS packet, decoded enough
// to drive a Notifier callback (program name / call letters change).
type Event struct {
	Class       Class
	Type        int
	Payload     []byte // raw payload, excluding the closing 0x0F
	ProgramName string // set when Class/Type identify a program-name packet
	CallLetters string // set for the channel-class call-letters packet (type 2)
}

// Decoder reassembles XDS packets from field-2 byte pairs (spec.md §4.7:
// "9 concurrent packet buffers, keyed by (class, type)").
type Decoder struct {
	buffers      [numBuffers]buffer
	currentIdx   int
	programName  string
	callLetters  string
}

// NewDecoder creates an empty Decoder.
func NewDecoder() *Decoder {
	d := &Decoder{currentIdx: -1}
	return d
}

// ProcessBytes feeds one (hi, lo) pair from field 2 while in_xds_mode,
// per process_xds_bytes.
func (d *Decoder) ProcessBytes(hi, lo byte) {
	if hi >= 0x01 && hi <= 0x0F {
		class := Class((hi - 1) / 2)
		isNew := hi%2 == 1

		matching, firstFree := -1, -1
		for i := range d.buffers {
			if d.buffers[i].inUse && d.buffers[i].class == class && d.buffers[i].typ == int(lo) {
				matching = i
				break
			}
			if firstFree == -1 && !d.buffers[i].inUse {
				firstFree = i
			}
		}
		if matching == -1 && firstFree == -1 {
			d.currentIdx = -1
			return
		}
		idx := matching
		if idx == -1 {
			idx = firstFree
		}
		d.currentIdx = idx

		if isNew || !d.buffers[idx].inUse {
			d.buffers[idx] = buffer{inUse: true, class: class, typ: int(lo)}
		}
		if !isNew {
			return // continue codes aren't added to the packet
		}
	} else {
		if (hi > 0 && hi <= 0x1F) || (lo > 0 && lo <= 0x1F) {
			return // illegal XDS data
		}
	}

	if d.currentIdx == -1 {
		return
	}
	b := &d.buffers[d.currentIdx]
	if len(b.bytes) <= 32 {
		b.bytes = append(b.bytes, hi, lo)
	}
}

// EndOfPacket validates and closes the current packet against
// expectedChecksum, per do_end_of_xds. Returns the decoded Event and
// true if the checksum matched and the packet was long enough; bad
// packets are silently dropped per spec.md invariant 6.
func (d *Decoder) EndOfPacket(expectedChecksum byte) (Event, bool) {
	if d.currentIdx == -1 || !d.buffers[d.currentIdx].inUse {
		return Event{}, false
	}
	b := &d.buffers[d.currentIdx]
	payload := append(append([]byte(nil), b.bytes...), 0x0F)

	var cs int
	for _, by := range payload {
		cs = (cs + int(by)) & 0x7F
	}
	cs = (128 - cs) & 0x7F

	if byte(cs) != expectedChecksum || len(payload) < 3 {
		d.clear(d.currentIdx)
		return Event{}, false
	}

	ev := Event{Class: b.class, Type: b.typ, Payload: payload[:len(payload)-1]}
	d.decode(&ev)
	d.clear(d.currentIdx)
	return ev, true
}

func (d *Decoder) clear(idx int) {
	d.buffers[idx] = buffer{}
}

// decode fills in the human-readable fields recognized by spec.md §4.7:
// program name (class current/future, type 1), station call letters
// (class channel, type 2).
func (d *Decoder) decode(ev *Event) {
	switch ev.Class {
	case ClassCurrent, ClassFuture:
		if ev.Type == 1 { // Program Name
			name := stripXDSText(ev.Payload[2:])
			ev.ProgramName = name
			if ev.Class == ClassCurrent {
				d.programName = name
			}
		}
	case ClassChannel:
		if ev.Type == 2 { // Call letters
			ev.CallLetters = stripXDSText(ev.Payload[2:])
			d.callLetters = ev.CallLetters
		}
	}
}

// stripXDSText strips the parity bit from each byte and trims trailing
// spaces/nulls, yielding printable program/station text.
func stripXDSText(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		c &= 0x7F
		if c == 0 {
			break
		}
		out = append(out, c)
	}
	s := string(out)
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

// ProgramName returns the last decoded current-program name.
func (d *Decoder) ProgramName() string { return d.programName }

// CallLetters returns the last decoded station call letters.
func (d *Decoder) CallLetters() string { return d.callLetters }

func (d *Decoder) String() string {
	return fmt.Sprintf("xds.Decoder{program=%q call=%q}", d.programName, d.callLetters)
}
