package cea708

// mapG0 maps the G0 code set (ASCII, with the music-note substitution
// for DEL at 0x7F per CEA-708 Annex) to an internal byte.
func mapG0(c byte) byte {
	if c == 0x7F {
		return '#' // music note substitute, approximated in this byte-grid
	}
	return c
}

// mapG1 maps the G1 code set (ISO 8859-1 Latin-1, carried in the
// 0xA0-0xFF range) to its Latin-1 byte, which is the wire byte itself.
func mapG1(c byte) byte {
	return c // already ISO-8859-1 in this service block's byte range
}

// mapG2 maps a handful of the G2 extended miscellaneous character set to
// a best-effort single-byte approximation (full Unicode needs a rune
// grid; this service uses a byte grid like the original's char buffer).
func mapG2(c byte) byte {
	switch c {
	case 0x20:
		return ' ' // transparent space
	case 0x21:
		return '!'
	case 0x25:
		return '.'
	case 0x2A:
		return '\''
	case 0x2C:
		return ','
	case 0x30:
		return 'A' // Á approximated
	default:
		return '?'
	}
}
