// Package cea708 implements CEA-708 DTVCC decoding: packet reassembly
// from the cc_data triplets the video user-data scanner extracts, demux
// into up to 63 independent services, and an 8-window "TV screen" model
// per service. Ported from CCExtractor's 708.c, matching its windowed
// model rather than a flattened text stream.
package cea708

import "fmt"

const maxPacketLength = 128 // EIA-708-B, part 5

const (
	maxWindows  = 8
	maxRows     = 15
	maxCols     = 32
)

// PrintDirection selects the writing direction of a window, per CEA-708
// window attributes (print_dir).
type PrintDirection int

const (
	PrintLeftToRight PrintDirection = iota
	PrintRightToLeft
	PrintTopToBottom
	PrintBottomToTop
)

// Window is one of a service's up to eight windows.
type Window struct {
	Defined  bool
	Visible  bool
	Empty    bool
	Rows     [maxRows][maxCols]byte
	RowCount int
	ColCount int
	PenRow   int
	PenCol   int
	PrintDir PrintDirection
	Anchor   AnchorPoint
	AnchorVertical, AnchorHorizontal int
	Priority int
}

// AnchorPoint selects which corner/edge of a window the anchor
// coordinates describe, per CEA-708 DefineWindow's anchor_point field.
type AnchorPoint int

const (
	AnchorTopLeft AnchorPoint = iota
	AnchorTopCenter
	AnchorTopRight
	AnchorCenterLeft
	AnchorCenter
	AnchorCenterRight
	AnchorBottomLeft
	AnchorBottomCenter
	AnchorBottomRight
)

func newWindow() *Window {
	w := &Window{RowCount: maxRows, ColCount: maxCols}
	w.clear()
	return w
}

func (w *Window) clear() {
	for i := range w.Rows {
		for j := range w.Rows[i] {
			w.Rows[i][j] = ' '
		}
	}
	w.Empty = true
}

// Text renders window content, rows joined by newline, trimmed of
// trailing spaces, limited to RowCount/ColCount.
func (w *Window) Text() string {
	out := ""
	rows := w.RowCount
	if rows > maxRows {
		rows = maxRows
	}
	for i := 0; i < rows; i++ {
		cols := w.ColCount
		if cols > maxCols {
			cols = maxCols
		}
		end := cols
		for end > 0 && w.Rows[i][end-1] == ' ' {
			end--
		}
		if end == 0 {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += string(w.Rows[i][:end])
	}
	return out
}

// Service is one CEA-708 caption service (1-63), with its own set of
// windows and current-window pointer.
type Service struct {
	num           int
	windows       [maxWindows]*Window
	currentWindow int // -1 when none selected

	extendedCodeSet bool // EXT1 seen, next byte is from an extended code set
}

// NewService creates an initialized, empty Service.
func NewService(num int) *Service {
	s := &Service{num: num, currentWindow: -1}
	for i := range s.windows {
		s.windows[i] = newWindow()
		s.windows[i].Defined = false
	}
	return s
}

// Reassembler accumulates cc_data triplets (type 2/3, per spec.md §4.6)
// into complete DTVCC packets, matching do_708/process_current_packet.
type Reassembler struct {
	buf      []byte
	lastSeq  int
	services map[int]*Service
}

// NewReassembler creates a Reassembler with lazily allocated services.
func NewReassembler() *Reassembler {
	return &Reassembler{lastSeq: -1, services: make(map[int]*Service)}
}

// Service returns (creating if necessary) the decoder for a service
// number (1-63).
func (r *Reassembler) Service(num int) *Service {
	svc, ok := r.services[num]
	if !ok {
		svc = NewService(num)
		r.services[num] = svc
	}
	return svc
}

// PacketEvent is produced whenever a service's window content changes
// as a result of processing a packet.
type PacketEvent struct {
	ServiceNum int
	Text       string
}

// AddTriplet feeds one (ccValid, ccType, b1, b2) cc_data entry (the
// four-byte unit spec.md §4.6 defines for DTVCC channel packet data).
// cc_type 2 continues the current packet; cc_type 3 starts a new one,
// flushing the previous. Returns events from any packet that was
// completed and processed as a result.
func (r *Reassembler) AddTriplet(ccValid bool, ccType int, b1, b2 byte) []PacketEvent {
	switch ccType {
	case 3:
		events := r.processCurrentPacket()
		if ccValid {
			r.appendBytes(b1, b2)
		}
		return events
	case 2:
		if !ccValid {
			return r.processCurrentPacket()
		}
		r.appendBytes(b1, b2)
		return nil
	}
	return nil
}

func (r *Reassembler) appendBytes(b1, b2 byte) {
	if len(r.buf) > 253 {
		return // legal packet size exceeded
	}
	r.buf = append(r.buf, b1, b2)
}

func (r *Reassembler) processCurrentPacket() []PacketEvent {
	if len(r.buf) == 0 {
		return nil
	}
	defer func() { r.buf = r.buf[:0] }()

	seq := int(r.buf[0]&0xC0) >> 6
	length := int(r.buf[0] & 0x3F)
	if length == 0 {
		length = 128
	} else {
		length *= 2
	}
	if len(r.buf) != length {
		r.lastSeq = -1
		return nil
	}
	if r.lastSeq != -1 && (r.lastSeq+1)%4 != seq {
		r.lastSeq = -1
		return nil
	}
	r.lastSeq = seq

	var events []PacketEvent
	pos := 1
	for pos < length {
		serviceNumber := int(r.buf[pos]&0xE0) >> 5
		blockLength := int(r.buf[pos] & 0x1F)
		pos++
		if serviceNumber == 7 && pos < length {
			serviceNumber = int(r.buf[pos] & 0x3F)
			pos++
		}
		if serviceNumber == 0 {
			break // illegal; rest of packet skipped per spec
		}
		if pos+blockLength > length {
			break
		}
		svc := r.Service(serviceNumber)
		if svc.processServiceBlock(r.buf[pos : pos+blockLength]) {
			events = append(events, PacketEvent{ServiceNum: serviceNumber, Text: svc.DisplayText()})
		}
		pos += blockLength
	}
	return events
}

// DisplayText concatenates the text of all currently visible windows,
// highest priority (0) first; windows of equal priority keep
// window-number order.
func (s *Service) DisplayText() string {
	out := ""
	for p := 0; p <= 7; p++ {
		for _, w := range s.windows {
			if w.Defined && w.Visible && !w.Empty && w.Priority == p {
				if out != "" {
					out += "\n"
				}
				out += w.Text()
			}
		}
	}
	return out
}

// processServiceBlock interprets one service's command/character stream
// and reports whether any window content changed.
func (s *Service) processServiceBlock(data []byte) bool {
	changed := false
	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == 0x10: // EXT1: next byte from extended code sets C2/C3/G2/G3
			i++
			if i < len(data) {
				i += s.handleExtended(data[i:])
			}
		case c <= 0x0F: // C0, single byte
			i += s.handleC0(data[i:])
			if c == 0x0D {
				changed = true
			}
		case c <= 0x17: // C0, one extra byte (reserved)
			i += 2
		case c <= 0x1F: // C0, two extra bytes (reserved)
			i += 3
		case c >= 0x20 && c <= 0x7F: // G0
			s.writeChar(mapG0(c))
			changed = true
			i++
		case c >= 0x80 && c <= 0x9F: // C1 window/pen commands
			n := s.handleC1(data[i:])
			if n == 0 {
				return changed // argument truncated; drop rest of block
			}
			changed = true
			i += n
		default: // G1 (0xA0-0xFF)
			s.writeChar(mapG1(c))
			changed = true
			i++
		}
	}
	return changed
}

func (s *Service) handleExtended(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	code := data[0]
	switch {
	case code <= 0x1F: // C2: reserved, fixed lengths per spec table; consume minimally
		return 1
	case code >= 0x20 && code <= 0x7F: // G2
		s.writeChar(mapG2(code))
		return 1
	case code >= 0x80 && code <= 0x9F: // C3
		return 1
	default: // G3
		s.writeChar('_')
		return 1
	}
}

// handleC0 processes a single-byte C0 code (0x00-0x0F); the two- and
// three-byte C0 codes (0x10-0x1F) are consumed directly by
// processServiceBlock since they carry no decodable command here.
func (s *Service) handleC0(data []byte) int {
	if data[0] == 0x0D {
		s.processCR()
	}
	return 1
}

func (s *Service) window() *Window {
	if s.currentWindow < 0 {
		return nil
	}
	return s.windows[s.currentWindow]
}

func (s *Service) processCR() {
	w := s.window()
	if w == nil {
		return
	}
	switch w.PrintDir {
	case PrintLeftToRight:
		w.PenCol = 0
		if w.PenRow+1 < w.RowCount {
			w.PenRow++
		}
	case PrintRightToLeft:
		w.PenCol = w.ColCount
		if w.PenRow+1 < w.RowCount {
			w.PenRow++
		}
	case PrintTopToBottom:
		w.PenRow = 0
		if w.PenCol+1 < w.ColCount {
			w.PenCol++
		}
	case PrintBottomToTop:
		w.PenRow = w.RowCount
		if w.PenCol+1 < w.ColCount {
			w.PenCol++
		}
	}
}

func (s *Service) writeChar(c byte) {
	w := s.window()
	if w == nil || !w.Defined {
		return
	}
	if w.PenRow >= 0 && w.PenRow < maxRows && w.PenCol >= 0 && w.PenCol < maxCols {
		w.Rows[w.PenRow][w.PenCol] = c
		w.Empty = false
	}
	switch w.PrintDir {
	case PrintLeftToRight:
		if w.PenCol+1 < w.ColCount {
			w.PenCol++
		}
	case PrintRightToLeft:
		if w.PenCol > 0 {
			w.PenCol--
		}
	case PrintTopToBottom:
		if w.PenRow+1 < w.RowCount {
			w.PenRow++
		}
	case PrintBottomToTop:
		if w.PenRow > 0 {
			w.PenRow--
		}
	}
}

// handleC1 dispatches window-group commands (CWx/CLW/DSW/HDW/TGW/DFx/
// SWA/DLW/SPA/SPC/SPL/DLY/DLC/RST), returning the number of command
// bytes consumed (including the opcode) so callers can advance. Returns
// 0 and consumes nothing if the argument length required isn't
// available.
func (s *Service) handleC1(data []byte) int {
	op := data[0]
	switch {
	case op >= 0x80 && op <= 0x87: // CWx: SetCurrentWindow0-7
		s.setCurrentWindow(int(op - 0x80))
		return 1
	case op == 0x88: // CLW
		if len(data) < 2 {
			return 0
		}
		s.clearWindows(data[1])
		return 2
	case op == 0x89: // DSW
		if len(data) < 2 {
			return 0
		}
		s.displayWindows(data[1], true)
		return 2
	case op == 0x8A: // HDW
		if len(data) < 2 {
			return 0
		}
		s.displayWindows(data[1], false)
		return 2
	case op == 0x8B: // TGW
		if len(data) < 2 {
			return 0
		}
		s.toggleWindows(data[1])
		return 2
	case op == 0x8C: // DLW
		if len(data) < 2 {
			return 0
		}
		s.deleteWindows(data[1])
		return 2
	case op == 0x8D, op == 0x8E: // DLY, DLC
		return 2
	case op == 0x8F: // RST
		s.reset()
		return 1
	case op >= 0x98 && op <= 0x9F: // DFx: DefineWindow0-7, 6 data bytes follow
		if len(data) < 7 {
			return 0
		}
		s.defineWindow(int(op-0x98), data[1:7])
		return 7
	case op == 0x90: // SPA: SetPenAttributes, 2 data bytes
		if len(data) < 3 {
			return 0
		}
		return 3
	case op == 0x91: // SPC: SetPenColor, 3 data bytes
		if len(data) < 4 {
			return 0
		}
		return 4
	case op == 0x92: // SPL: SetPenLocation, 2 data bytes
		if len(data) < 3 {
			return 0
		}
		s.setPenLocation(data[1], data[2])
		return 3
	case op == 0x97: // SWA: SetWindowAttributes, 4 data bytes
		if len(data) < 5 {
			return 0
		}
		s.setWindowAttributes(data[1:5])
		return 5
	}
	return 1
}

func (s *Service) setCurrentWindow(w int) {
	if w < 0 || w >= maxWindows {
		return
	}
	if s.windows[w].Defined {
		s.currentWindow = w
	}
}

func (s *Service) clearWindows(bitmap byte) {
	for i := 0; i < maxWindows; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			s.windows[i].clear()
		}
	}
}

func (s *Service) displayWindows(bitmap byte, visible bool) {
	for i := 0; i < maxWindows; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			s.windows[i].Visible = visible
		}
	}
}

func (s *Service) toggleWindows(bitmap byte) {
	for i := 0; i < maxWindows; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			s.windows[i].Visible = !s.windows[i].Visible
		}
	}
}

func (s *Service) deleteWindows(bitmap byte) {
	for i := 0; i < maxWindows; i++ {
		if bitmap&(1<<uint(i)) != 0 {
			s.windows[i] = newWindow()
			if s.currentWindow == i {
				s.currentWindow = -1
			}
		}
	}
}

func (s *Service) reset() {
	for i := range s.windows {
		s.windows[i] = newWindow()
	}
	s.currentWindow = -1
}

// defineWindow parses DFx's 6-byte payload (attributes + anchor + row/col
// counts), mirroring handle_708_DFx_DefineWindow's bit layout.
func (s *Service) defineWindow(w int, data []byte) {
	win := s.windows[w]
	win.Defined = true
	win.Visible = data[0]&0x20 != 0
	win.Priority = int(data[0] & 0x07)
	win.Anchor = AnchorPoint((data[1] >> 4) & 0x0F)
	win.AnchorVertical = int(data[1]&0x0F)<<4 | int(data[2]>>4)
	win.AnchorHorizontal = int(data[2]&0x0F)<<4 | int(data[3]>>4)
	win.RowCount = int(data[3]&0x0F) + 1
	win.ColCount = int(data[4]&0x3F) + 1
	if win.RowCount > maxRows {
		win.RowCount = maxRows
	}
	if win.ColCount > maxCols {
		win.ColCount = maxCols
	}
	win.PenRow = 0
	win.PenCol = 0
	win.clear()
	if s.currentWindow < 0 {
		s.currentWindow = w
	}
}

func (s *Service) setWindowAttributes(data []byte) {
	w := s.window()
	if w == nil {
		return
	}
	w.PrintDir = PrintDirection((data[1] >> 4) & 0x03)
}

func (s *Service) setPenLocation(row, col byte) {
	w := s.window()
	if w == nil {
		return
	}
	w.PenRow = int(row & 0x0F)
	w.PenCol = int(col & 0x3F)
}

func (s *Service) String() string {
	return fmt.Sprintf("cea708.Service{num=%d current=%d}", s.num, s.currentWindow)
}
