// Package cea608 implements the CEA-608 line-21 closed caption decoder:
// a two-buffer, four-mode (pop-on/roll-up/paint-on/text) character-grid
// state machine driven by decoded byte pairs from the video user-data
// scanner. It is ported from CCExtractor's 608.c state machine, kept
// faithful to its quirks (see the decisions in DESIGN.md's Open
// Question section) rather than "fixed" to a cleaner design.
package cea608

import "fmt"

// Mode is the CEA-608 caption display mode (cc_modes in 608.c).
type Mode int

const (
	ModePopOn Mode = iota
	ModeRollUp2
	ModeRollUp3
	ModeRollUp4
	ModeText
	ModePaintOn
	ModeFakeRollUp1
)

// Screen is a 15-row by 32-column character grid with per-cell color and
// font, matching struct eia608_screen.
type Screen struct {
	Characters [15][screenWidth]byte
	Colors     [15][screenWidth]Color
	Fonts      [15][screenWidth]Font
	RowUsed    [15]bool
	Empty      bool
}

func newScreen() *Screen {
	s := &Screen{Empty: true}
	s.clear(ColWhite)
	return s
}

func (s *Screen) clear(defaultColor Color) {
	for i := range s.Characters {
		for j := range s.Characters[i] {
			s.Characters[i][j] = ' '
			s.Colors[i][j] = defaultColor
			s.Fonts[i][j] = FontRegular
		}
		s.RowUsed[i] = false
	}
	s.Empty = true
}

// Line returns row i trimmed of trailing spaces.
func (s *Screen) Line(i int) string {
	if i < 0 || i >= 15 {
		return ""
	}
	end := screenWidth
	for end > 0 && s.Characters[i][end-1] == ' ' {
		end--
	}
	return string(s.Characters[i][:end])
}

// Text joins every used row, in order, with newlines.
func (s *Screen) Text() string {
	out := ""
	for i := 0; i < 15; i++ {
		if !s.RowUsed[i] {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += s.Line(i)
	}
	return out
}

// ForceRollUp downgrades all roll-up variants to a single fixed size, or
// disables roll-up entirely in favor of a synthetic 1-row mode. Mirrors
// ccx_options.forced_ru/norollup.
type ForceRollUp int

const (
	ForceRollUpNone ForceRollUp = iota
	ForceRollUp1
	ForceRollUp2
	ForceRollUp3
)

// Options configures decoder behavior from config.Config.
type Options struct {
	Channel          int // 1 or 2: which channel of this decoder's field is output
	DefaultColor     Color
	Forced           ForceRollUp
	NoRollUp         bool // erase_memory(true) on every flush even without EDM
}

// Subtitle is one finalized, displayed screen, emitted on every
// buffer-ending event (EDM/EOC/roll-up-drop/CR-rollup), ready to be
// stamped with start/end FTS by the caller and handed to internal/subtitle.
type Subtitle struct {
	Screen  *Screen
	Mode    Mode
	Channel int
}

// Decoder is a single CEA-608 field decoder (one per field, per §4.5).
type Decoder struct {
	opts Options

	buffer1, buffer2 *Screen
	visibleBuffer    int // 1 or 2

	cursorRow, cursorColumn int
	color                   Color
	font                    Font
	mode                    Mode
	rollupBaseRow           int

	channel    int
	newChannel int

	lastC1, lastC2 int // -1 when unset

	tsStartOfCurrentLine int64
	haveStartTS          bool
	currentFTS           int64

	screenfuls int
}

// NewDecoder creates a Decoder for one field (1 or 2); opts.Channel
// selects which of the two channels multiplexed onto that field is kept.
func NewDecoder(opts Options) *Decoder {
	d := &Decoder{
		opts:          opts,
		buffer1:       newScreen(),
		buffer2:       newScreen(),
		visibleBuffer: 1,
		mode:          ModePopOn,
		channel:       1,
		newChannel:    1,
		rollupBaseRow: 14,
		color:         opts.DefaultColor,
		font:          FontRegular,
		lastC1:        -1,
		lastC2:        -1,
	}
	if d.opts.Channel == 0 {
		d.opts.Channel = 1
	}
	return d
}

// Feed processes one decoded byte pair (parity bits already stripped) at
// the given frame timestamp (milliseconds), returning a finalized
// Subtitle whenever a buffer-ending event occurs.
func (d *Decoder) Feed(c1, c2 byte, fts int64) *Subtitle {
	d.currentFTS = fts
	hi := c1 & 0x7F
	lo := c2 & 0x7F

	if hi == 0 && lo == 0 {
		return nil // padding
	}

	if hi >= 0x10 && hi <= 0x1F {
		if d.lastC1 == int(hi) && d.lastC2 == int(lo) {
			d.lastC1, d.lastC2 = -1, -1
			return nil // duplicate control code, CEA-608 requires one repeat be dropped
		}
		d.lastC1, d.lastC2 = int(hi), int(lo)
		return d.disCommand(hi, lo)
	}

	d.lastC1, d.lastC2 = -1, -1
	if hi >= 0x20 {
		d.handleSingle(hi)
		if lo >= 0x20 {
			d.handleSingle(lo)
		}
	}
	return nil
}

func (d *Decoder) checkChannel(c1 byte) int {
	newchan := d.channel
	switch {
	case c1 >= 0x10 && c1 <= 0x17:
		newchan = 1
	case c1 >= 0x18 && c1 <= 0x1E:
		newchan = 2
	}
	// Deliberately does not erase_both_memories() on channel change: the
	// upstream implementation disabled that call (47 CFR 15.119 p.859(f)
	// discussion) and this port preserves that behavior.
	return newchan
}

func (d *Decoder) disCommand(hi, lo byte) *Subtitle {
	d.newChannel = d.checkChannel(hi)

	if hi >= 0x18 && hi <= 0x1F {
		hi -= 8
	}

	switch hi {
	case 0x10:
		if lo >= 0x40 && lo <= 0x5F {
			d.handlePAC(hi, lo)
		}
	case 0x11:
		if lo >= 0x20 && lo <= 0x2F {
			d.handleTextAttr(hi, lo)
		}
		if lo >= 0x30 && lo <= 0x3F {
			d.handleDouble(lo)
		}
		if lo >= 0x40 && lo <= 0x7F {
			d.handlePAC(hi, lo)
		}
	case 0x12, 0x13:
		if lo >= 0x20 && lo <= 0x3F {
			d.handleExtended(hi, lo)
		}
		if lo >= 0x40 && lo <= 0x7F {
			d.handlePAC(hi, lo)
		}
	case 0x14, 0x15:
		if lo >= 0x20 && lo <= 0x2F {
			return d.handleCommand(0x14, lo)
		}
		if lo >= 0x40 && lo <= 0x7F {
			d.handlePAC(hi, lo)
		}
	case 0x16:
		if lo >= 0x40 && lo <= 0x7F {
			d.handlePAC(hi, lo)
		}
	case 0x17:
		if lo >= 0x21 && lo <= 0x23 {
			return d.handleCommand(hi, lo)
		}
		if lo >= 0x2E && lo <= 0x2F {
			d.handleTextAttr(hi, lo)
		}
		if lo >= 0x40 && lo <= 0x7F {
			d.handlePAC(hi, lo)
		}
	}
	return nil
}

func (d *Decoder) writingBuffer() *Screen {
	switch d.mode {
	case ModePopOn:
		if d.visibleBuffer == 1 {
			return d.buffer2
		}
		return d.buffer1
	default: // roll-up variants, paint-on, text write directly to the visible buffer
		if d.visibleBuffer == 1 {
			return d.buffer1
		}
		return d.buffer2
	}
}

func (d *Decoder) visibleScreen() *Screen {
	if d.visibleBuffer == 1 {
		return d.buffer1
	}
	return d.buffer2
}

func (d *Decoder) writeChar(c byte) {
	if d.mode == ModeText {
		return
	}
	buf := d.writingBuffer()
	buf.Characters[d.cursorRow][d.cursorColumn] = c
	buf.Colors[d.cursorRow][d.cursorColumn] = d.color
	buf.Fonts[d.cursorRow][d.cursorColumn] = d.font
	buf.RowUsed[d.cursorRow] = true
	buf.Empty = false

	if d.cursorColumn < 31 {
		d.cursorColumn++
	}
	if !d.haveStartTS {
		d.tsStartOfCurrentLine = d.currentFTS
		d.haveStartTS = true
	}
}

func (d *Decoder) handleSingle(c1 byte) {
	if c1 < 0x20 || d.channel != d.opts.Channel {
		return
	}
	d.writeChar(c1)
}

func (d *Decoder) handleDouble(c2 byte) {
	if d.channel != d.opts.Channel {
		return
	}
	if c2 >= 0x30 && c2 <= 0x3F {
		r, ok := specialChars[c2]
		if !ok {
			r = '?'
		}
		d.writeRune(r)
	}
}

func (d *Decoder) handleExtended(hi, lo byte) {
	if d.newChannel > 2 {
		d.newChannel -= 2
	}
	d.channel = d.newChannel
	if d.channel != d.opts.Channel {
		return
	}
	if lo < 0x20 || lo > 0x3F || (hi != 0x12 && hi != 0x13) {
		return
	}
	r, ok := extendedWestEuropean[uint16(hi)<<8|uint16(lo)]
	if !ok {
		return
	}
	if d.cursorColumn > 0 {
		d.cursorColumn--
	}
	d.writeRune(r)
}

func (d *Decoder) writeRune(r rune) {
	// Grid cells are single bytes (matching the original's Latin-1-ish
	// in-memory representation); encode to a best-effort byte, falling
	// back to '?' for characters outside Latin-1.
	if r <= 0xFF {
		d.writeChar(byte(r))
		return
	}
	d.writeChar('?')
}

func (d *Decoder) handleTextAttr(c1, c2 byte) {
	d.channel = d.newChannel
	if d.channel != d.opts.Channel {
		return
	}
	if (c1 != 0x11 && c1 != 0x19) || c2 < 0x20 || c2 > 0x2F {
		return
	}
	a := pac2Attribs[c2-0x20]
	d.color = a.color
	d.font = a.font
	d.writeChar(0x20)
}

func (d *Decoder) handlePAC(c1, c2 byte) {
	if d.newChannel > 2 {
		d.newChannel -= 2
	}
	d.channel = d.newChannel
	if d.channel != d.opts.Channel {
		return
	}

	row := rowdata[((c1<<1)&14)|((c2>>5)&1)]

	var idx byte
	switch {
	case c2 >= 0x40 && c2 <= 0x5F:
		idx = c2 - 0x40
	case c2 >= 0x60 && c2 <= 0x7F:
		idx = c2 - 0x60
	default:
		return // not a PAC
	}

	a := pac2Attribs[idx]
	d.color = a.color
	d.font = a.font
	if d.opts.DefaultColor == ColUserDefined && (d.color == ColWhite || d.color == ColTransparent) {
		d.color = ColUserDefined
	}

	if d.mode != ModeText {
		d.cursorRow = row - 1
	}
	d.rollupBaseRow = row - 1
	d.cursorColumn = a.indent

	if d.mode == ModeFakeRollUp1 || d.mode == ModeRollUp2 || d.mode == ModeRollUp3 || d.mode == ModeRollUp4 {
		buf := d.writingBuffer()
		for j := row; j < 15; j++ {
			if buf.RowUsed[j] {
				for k := 0; k < screenWidth; k++ {
					buf.Characters[j][k] = ' '
					buf.Colors[j][k] = d.opts.DefaultColor
					buf.Fonts[j][k] = FontRegular
				}
				buf.RowUsed[j] = false
			}
		}
	}
}

// keepLines returns the roll-up window size for the current mode.
func (d *Decoder) keepLines() int {
	switch d.mode {
	case ModeFakeRollUp1:
		return 1
	case ModeRollUp2:
		return 2
	case ModeRollUp3:
		return 3
	case ModeRollUp4:
		return 4
	case ModeText:
		return 7
	default:
		return 0
	}
}

func (d *Decoder) checkRollUp() bool {
	keep := d.keepLines()
	buf := d.visibleScreen()
	if buf.RowUsed[0] {
		return true
	}
	firstrow, lastrow := -1, -1
	for i := 0; i < 15; i++ {
		if buf.RowUsed[i] {
			if firstrow == -1 {
				firstrow = i
			}
			lastrow = i
		}
	}
	if lastrow == -1 {
		return false
	}
	if lastrow-firstrow+1 >= keep {
		return true
	}
	return firstrow-1 <= d.cursorRow-keep
}

func (d *Decoder) rollUp() bool {
	keep := d.keepLines()
	buf := d.visibleScreen()

	firstrow, lastrow, rowsOrig := -1, -1, 0
	for i := 0; i < 15; i++ {
		if buf.RowUsed[i] {
			rowsOrig++
			if firstrow == -1 {
				firstrow = i
			}
			lastrow = i
		}
	}
	if lastrow == -1 {
		return false
	}

	for j := lastrow - keep + 1; j < lastrow; j++ {
		if j >= 0 {
			buf.Characters[j] = buf.Characters[j+1]
			buf.Colors[j] = buf.Colors[j+1]
			buf.Fonts[j] = buf.Fonts[j+1]
			buf.RowUsed[j] = buf.RowUsed[j+1]
		}
	}
	for j := 0; j < 1+d.cursorRow-keep; j++ {
		if j < 0 || j >= 15 {
			continue
		}
		for k := 0; k < screenWidth; k++ {
			buf.Characters[j][k] = ' '
			buf.Colors[j][k] = d.opts.DefaultColor
			buf.Fonts[j][k] = FontRegular
		}
		buf.RowUsed[j] = false
	}
	for k := 0; k < screenWidth; k++ {
		buf.Characters[lastrow][k] = ' '
		buf.Colors[lastrow][k] = d.opts.DefaultColor
		buf.Fonts[lastrow][k] = FontRegular
	}
	buf.RowUsed[lastrow] = false

	rowsNow := 0
	for i := 0; i < 15; i++ {
		if buf.RowUsed[i] {
			rowsNow++
		}
	}
	if rowsNow == 0 {
		buf.Empty = true
	}
	return rowsNow != rowsOrig
}

func (d *Decoder) eraseMemory(displayed bool) {
	var buf *Screen
	if displayed == (d.visibleBuffer == 1) {
		buf = d.buffer1
	} else {
		buf = d.buffer2
	}
	buf.clear(d.opts.DefaultColor)
}

// flush returns a Subtitle snapshot of the currently visible screen if it
// has content, matching write_cc_buffer's non-empty gate.
func (d *Decoder) flush() *Subtitle {
	buf := d.visibleScreen()
	if buf.Empty {
		return nil
	}
	d.screenfuls++
	snapshot := *buf
	return &Subtitle{Screen: &snapshot, Mode: d.mode, Channel: d.opts.Channel}
}

func (d *Decoder) handleCommand(c1, c2 byte) *Subtitle {
	d.channel = d.newChannel
	if d.channel != d.opts.Channel {
		return nil
	}

	type command int
	const (
		cmdNone command = iota
		cmdEDM
		cmdRCL
		cmdEOC
		cmdTO1
		cmdTO2
		cmdTO3
		cmdRU2
		cmdRU3
		cmdRU4
		cmdFakeRU1
		cmdRDC
		cmdCR
		cmdENM
		cmdBS
		cmdRTD
		cmdDER
	)

	cmd := cmdNone
	switch {
	case c2 == 0x2C:
		cmd = cmdEDM
	case c2 == 0x20:
		cmd = cmdRCL
	case c2 == 0x2F:
		cmd = cmdEOC
	case c2 == 0x24:
		cmd = cmdDER
	case c2 == 0x25:
		cmd = cmdRU2
	case c2 == 0x26:
		cmd = cmdRU3
	case c2 == 0x27:
		cmd = cmdRU4
	case c2 == 0x29:
		cmd = cmdRDC
	case c2 == 0x2D:
		cmd = cmdCR
	case c2 == 0x2E:
		cmd = cmdENM
	case c2 == 0x21:
		cmd = cmdBS
	case c2 == 0x2B:
		cmd = cmdRTD
	}
	// Tab offsets arrive with hi==0x17/0x1F, already normalized by the
	// caller's channel-bit stripping; handled separately below.
	if c1 == 0x17 {
		switch c2 {
		case 0x21:
			cmd = cmdTO1
		case 0x22:
			cmd = cmdTO2
		case 0x23:
			cmd = cmdTO3
		}
	}

	if (cmd == cmdRU2 || cmd == cmdRU3 || cmd == cmdRU4) && d.opts.Forced == ForceRollUp1 {
		cmd = cmdFakeRU1
	}
	if (cmd == cmdRU3 || cmd == cmdRU4) && d.opts.Forced == ForceRollUp2 {
		cmd = cmdRU2
	} else if cmd == cmdRU4 && d.opts.Forced == ForceRollUp3 {
		cmd = cmdRU3
	}

	switch cmd {
	case cmdBS:
		if d.cursorColumn > 0 {
			d.cursorColumn--
			d.writingBuffer().Characters[d.cursorRow][d.cursorColumn] = ' '
		}
	case cmdTO1:
		if d.cursorColumn < 31 {
			d.cursorColumn++
		}
	case cmdTO2:
		d.cursorColumn += 2
		if d.cursorColumn > 31 {
			d.cursorColumn = 31
		}
	case cmdTO3:
		d.cursorColumn += 3
		if d.cursorColumn > 31 {
			d.cursorColumn = 31
		}
	case cmdRCL:
		d.mode = ModePopOn
	case cmdRTD:
		d.mode = ModeText
	case cmdFakeRU1, cmdRU2, cmdRU3, cmdRU4:
		var sub *Subtitle
		if d.mode == ModePopOn || d.mode == ModePaintOn {
			if f := d.flush(); f != nil {
				sub = f
			}
			d.eraseMemory(true)
		}
		d.eraseMemory(false)

		if d.mode == ModeText {
			d.cursorRow = 14
			d.cursorColumn = 0
		} else if d.mode == ModeRollUp4 {
			d.cursorRow = d.rollupBaseRow
			d.cursorColumn = 0
		}

		switch cmd {
		case cmdFakeRU1:
			d.mode = ModeFakeRollUp1
		case cmdRU2:
			d.mode = ModeRollUp2
		case cmdRU3:
			d.mode = ModeRollUp3
		case cmdRU4:
			d.mode = ModeRollUp4
		}
		return sub
	case cmdCR:
		if d.mode == ModePaintOn {
			break
		}
		if d.mode == ModePopOn {
			d.cursorColumn = 0
			if d.cursorRow < 15 {
				d.cursorRow++
			}
			break
		}
		changed := d.checkRollUp()
		var sub *Subtitle
		if changed {
			if f := d.flush(); f != nil {
				sub = f
			}
			if d.opts.NoRollUp {
				d.eraseMemory(true)
			}
		}
		d.rollUp()
		d.haveStartTS = false
		d.cursorColumn = 0
		return sub
	case cmdENM:
		d.eraseMemory(false)
	case cmdEDM:
		sub := d.flush()
		d.eraseMemory(true)
		d.cursorColumn = 0
		d.cursorRow = 0
		d.color = d.opts.DefaultColor
		d.font = FontRegular
		return sub
	case cmdEOC:
		sub := d.flush()
		if d.visibleBuffer == 1 {
			d.visibleBuffer = 2
		} else {
			d.visibleBuffer = 1
		}
		d.cursorColumn = 0
		d.cursorRow = 0
		d.color = d.opts.DefaultColor
		d.font = FontRegular
		d.mode = ModePopOn
		return sub
	case cmdDER:
		if d.mode != ModeText {
			buf := d.writingBuffer()
			for i := d.cursorColumn; i <= 31; i++ {
				buf.Characters[d.cursorRow][i] = ' '
				buf.Colors[d.cursorRow][i] = d.opts.DefaultColor
				buf.Fonts[d.cursorRow][i] = d.font
			}
		}
	case cmdRDC:
		d.mode = ModePaintOn
	}
	return nil
}

// EndOfData flushes any pending displayed screen, as handle_end_of_data
// does by synthesizing an EDM.
func (d *Decoder) EndOfData() *Subtitle {
	return d.handleCommand(0x14, 0x2C)
}

func (d *Decoder) String() string {
	return fmt.Sprintf("cea608.Decoder{channel=%d mode=%d}", d.opts.Channel, d.mode)
}
