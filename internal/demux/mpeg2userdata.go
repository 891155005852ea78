package demux

// MPEG-2 user_data() dispatch: picture/GOP/sequence extension user-data
// payloads carrying closed captions in formats that predate or sit
// alongside the ATSC A/53 GA94 marker. Ported from the dispatch chain in
// es_userdata.cpp's user_data(), which switches on the first two to four
// bytes of the payload (the marker immediately following the
// 0x000001B2 user_data start code, already stripped by the caller).
//
// All branches normalize to the same CCTriplet shape handleCaptionSEI
// already consumes: CCType 0 is field 1, CCType 1 is field 2.

// MPEG2UserDataDecoder holds the small amount of state the Dish Network
// branch needs across calls (its buffered 0x05 picture-header captions
// reference the fields filled in by the previous call).
type MPEG2UserDataDecoder struct {
	dishData [7]byte
}

// NewMPEG2UserDataDecoder returns a decoder ready to parse user_data()
// payloads in the order they appear in the stream.
func NewMPEG2UserDataDecoder() *MPEG2UserDataDecoder {
	d := &MPEG2UserDataDecoder{}
	d.dishData = [7]byte{0x04, 0, 0, 0x04, 0, 0, 0xFF}
	return d
}

// ParseUserData recognizes the marker at the start of ud and extracts
// its caption triplets. Returns nil if the marker isn't one of the
// recognized caption carriers.
func (d *MPEG2UserDataDecoder) ParseUserData(ud []byte) []CCTriplet {
	if len(ud) < 2 {
		return nil
	}
	switch {
	case ud[0] == 0x43 && ud[1] == 0x43: // "CC" - DVD CC header
		return d.parseDVDCC(ud)
	case ud[0] == 0x03 && len(ud) >= 2 && (ud[1]&0x7F) == 0x01:
		return d.parseSCTE20(ud)
	case (ud[0] == 0xBB || ud[0] == 0x99) && len(ud) >= 2 && ud[1] == 0x02:
		return d.parseReplayTV(ud)
	case len(ud) >= 4 && string(ud[0:4]) == "GA94":
		return d.parseGA94(ud)
	case ud[0] == 0x05 && ud[1] == 0x02:
		return d.parseDishNetwork(ud)
	case ud[0] == 0x02 && ud[1] == 0x09:
		return d.parseDivicom(ud)
	default:
		return nil
	}
}

// parseDVDCC decodes the "CC 43 01 F8" DVD closed-caption header: a
// pattern flag, 5-bit caption-block count, and a truncate flag, followed
// by that many field1/field2 byte-pairs marked with 0xFF/0xFE.
func (d *MPEG2UserDataDecoder) parseDVDCC(ud []byte) []CCTriplet {
	if len(ud) < 5 {
		return nil
	}
	flags := ud[4]
	patternFlag := flags & 0x80
	capCount := int((flags >> 2) & 0x1F)
	truncateFlag := flags & 0x01
	if truncateFlag != 0 {
		capCount++
	}
	field1Packet := 0
	if patternFlag == 0 {
		field1Packet = 1
	}

	out := make([]CCTriplet, 0, capCount*2)
	pos := 5
	for i := 0; i < capCount && pos+3*2 <= len(ud); i++ {
		for j := 0; j < 2; j++ {
			if pos+3 > len(ud) {
				return out
			}
			marker, b1, b2 := ud[pos], ud[pos+1], ud[pos+2]
			pos += 3
			if marker&0xFE != 0xFE {
				return out
			}
			field := 1 // field 2
			if marker == 0xFF && j == field1Packet {
				field = 0 // field 1
			}
			out = append(out, CCTriplet{CCValid: true, CCType: uint8(field), B1: b1, B2: b2})
		}
	}
	return out
}

// parseSCTE20 decodes an SCTE-20 "03 01" user-data block: a 5-bit
// cc_count followed by that many (priority, field_number, line_offset,
// cc_data1, cc_data2, marker) entries, with the bit-reversed cc_data
// bytes CCExtractor's reverse8() undoes.
func (d *MPEG2UserDataDecoder) parseSCTE20(ud []byte) []CCTriplet {
	if len(ud) < 3 {
		return nil
	}
	ccCount := int(ud[2] >> 3) // top 5 bits of the byte following "03 01"
	out := make([]CCTriplet, 0, ccCount)
	pos := 3
	for j := 0; j < ccCount && pos+3 <= len(ud); j++ {
		b0, b1, b2 := ud[pos], ud[pos+1], ud[pos+2]
		pos += 3
		fieldNumber := (b0 >> 3) & 0x03
		if fieldNumber < 1 {
			continue // field_number 0 is forbidden
		}
		field := (fieldNumber - 1) & 0x01
		out = append(out, CCTriplet{
			CCValid: true,
			CCType:  field,
			B1:      reverse8(b1),
			B2:      reverse8(b2),
		})
	}
	return out
}

// reverse8 reverses the bit order of a byte, matching CCExtractor's
// reverse8() used to undo SCTE-20's bit-reversed cc_data transmission order.
func reverse8(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out <<= 1
		out |= b & 1
		b >>= 1
	}
	return out
}

// parseReplayTV decodes the ReplayTV 4000/5000 caption header: field 2
// data immediately after the "BB 02"/"99 02" marker, then field 1 data
// after a second "CC 02"/"AA 02" marker.
func (d *MPEG2UserDataDecoder) parseReplayTV(ud []byte) []CCTriplet {
	if len(ud) < 8 {
		return nil
	}
	return []CCTriplet{
		{CCValid: true, CCType: 1, B1: ud[2], B2: ud[3]},
		{CCValid: true, CCType: 0, B1: ud[6], B2: ud[7]},
	}
}

// parseGA94 decodes the ATSC A/53 GA94 marker when it appears as MPEG-2
// picture user_data rather than an H.264 SEI message. The payload layout
// after the "GA94" identifier is identical to ExtractGA94's.
func (d *MPEG2UserDataDecoder) parseGA94(ud []byte) []CCTriplet {
	if len(ud) < 6 {
		return nil
	}
	if ud[4] != 0x03 { // type_code: only cc_data() is recognized
		return nil
	}
	flags := ud[5]
	processCCData := flags&0x40 != 0
	ccCount := int(flags & 0x1F)
	if !processCCData {
		return nil
	}
	base := 7 // skip the "FF" marker byte at ud[6]
	if base+ccCount*3 > len(ud) {
		ccCount = (len(ud) - base) / 3
	}
	out := make([]CCTriplet, 0, ccCount)
	for j := 0; j < ccCount; j++ {
		p := base + j*3
		marker := ud[p]
		out = append(out, CCTriplet{
			CCValid: marker&0x04 != 0,
			CCType:  marker & 0x03,
			B1:      ud[p+1],
			B2:      ud[p+2],
		})
	}
	return out
}

// parseDishNetwork decodes Dish Network's proprietary field-1-only
// caption header. The 0x05 "buffered" variant reads fields filled in by
// the previous call, which d.dishData carries across invocations.
func (d *MPEG2UserDataDecoder) parseDishNetwork(ud []byte) []CCTriplet {
	if len(ud) < 8 {
		return nil
	}
	typ := ud[7]
	dcd := ud[8:]

	switch typ {
	case 0x02:
		if len(dcd) < 4 {
			return nil
		}
		ccCount := 1
		d.dishData[1], d.dishData[2] = dcd[1], dcd[2]
		repeat := dcd[3]
		hi := d.dishData[1] & 0x7F
		if repeat == 0x04 && hi < 32 {
			ccCount = 2
			d.dishData[3] = 0x04
			d.dishData[4] = d.dishData[1]
			d.dishData[5] = d.dishData[2]
		}
		return dishTriplets(d.dishData, ccCount)

	case 0x04:
		if len(dcd) < 5 {
			return nil
		}
		d.dishData[1], d.dishData[2] = dcd[1], dcd[2]
		d.dishData[3] = 0x04
		d.dishData[4], d.dishData[5] = dcd[3], dcd[4]
		return dishTriplets(d.dishData, 2)

	case 0x05:
		if len(dcd) < 10 {
			return nil
		}
		dcd = dcd[6:] // skip the 6 bytes referencing the previous header
		innerType := dcd[0]
		d.dishData[1], d.dishData[2] = dcd[2], dcd[3]
		dcd = dcd[4:]
		if innerType == 0x02 {
			if len(dcd) < 1 {
				return nil
			}
			repeat := dcd[0]
			ccCount := 1
			hi := d.dishData[1] & 0x7F
			if repeat == 0x04 && hi < 32 {
				ccCount = 2
				d.dishData[3] = 0x04
				d.dishData[4] = d.dishData[1]
				d.dishData[5] = d.dishData[2]
			}
			return dishTriplets(d.dishData, ccCount)
		}
		if len(dcd) < 2 {
			return nil
		}
		d.dishData[3] = 0x04
		d.dishData[4], d.dishData[5] = dcd[0], dcd[1]
		return dishTriplets(d.dishData, 2)

	default:
		return nil
	}
}

// dishTriplets converts the packed dishData buffer (always field 1,
// CCExtractor's "HDTV-compatible" encoding) into count CCTriplets.
func dishTriplets(buf [7]byte, count int) []CCTriplet {
	out := make([]CCTriplet, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, CCTriplet{CCValid: true, CCType: 0, B1: buf[i*3+1], B2: buf[i*3+2]})
	}
	return out
}

// parseDivicom decodes the "02 09 80 80 02 0A" Divicom/CEA-608 marker:
// a single field-1 byte pair after the fixed 6-byte prefix.
func (d *MPEG2UserDataDecoder) parseDivicom(ud []byte) []CCTriplet {
	if len(ud) < 8 {
		return nil
	}
	return []CCTriplet{{CCValid: true, CCType: 0, B1: ud[6], B2: ud[7]}}
}
