package mpegts

// Elementary stream type values (ISO/IEC 13818-1 Table 2-34, plus the
// ATSC/DVB private-data values spec.md §4.2 requires the caption PID
// auto-selector to recognize).
const (
	StreamTypeMPEG1Video uint8 = 0x01
	StreamTypeMPEG2Video uint8 = 0x02
	StreamTypeMPEG1Audio uint8 = 0x03
	StreamTypeMPEG2Audio uint8 = 0x04
	StreamTypePrivateSection uint8 = 0x05
	StreamTypePrivateData uint8 = 0x06
	StreamTypeAAC        uint8 = 0x0F
	StreamTypeAACLATM    uint8 = 0x11
	StreamTypeH264       uint8 = 0x1B
	StreamTypeHEVC       uint8 = 0x24
	StreamTypeAC3        uint8 = 0x81
	StreamTypeSCTE35     uint8 = 0x86
)

// IsUserPrivate reports whether t falls in the ISO 13818-1 user-private
// range (0x80-0xFF), which broadcasters use for AC-3/SCTE-35/proprietary
// payloads that still need PMT-driven recognition.
func IsUserPrivate(t uint8) bool {
	return t >= 0x80
}
