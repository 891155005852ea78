package demux

import "testing"

func buildGA94T35(triplets []CCTriplet) []byte {
	payload := []byte{
		t35CountryCodeUS,
		byte(t35ProviderATSC >> 8), byte(t35ProviderATSC),
		'G', 'A', '9', '4',
		0x03,                              // type_code: cc_data()
		0x40 | byte(len(triplets)&0x1F),    // process_cc_data_flag=1, cc_count
		0xFF,                              // marker
	}
	for _, t := range triplets {
		marker := byte(0xF8) | t.CCType
		if t.CCValid {
			marker |= 0x04
		}
		payload = append(payload, marker, t.B1, t.B2)
	}
	return payload
}

func TestExtractGA94RoundTrip(t *testing.T) {
	want := []CCTriplet{
		{CCValid: true, CCType: ccTypeNTSCField1, B1: 0x80, B2: 0x80},
		{CCValid: true, CCType: ccTypeNTSCField2, B1: 0x11, B2: 0x22},
	}
	got := ExtractGA94(buildGA94T35(want))
	if len(got) != len(want) {
		t.Fatalf("got %d triplets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("triplet %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExtractGA94RejectsNonGA94(t *testing.T) {
	payload := []byte{t35CountryCodeUS, 0x00, 0x01, 'X', 'X', 'X', 'X', 0x03}
	if got := ExtractGA94(payload); got != nil {
		t.Errorf("ExtractGA94 = %v, want nil for non-GA94 provider", got)
	}
}

// buildSEINALU wraps a GA94 T.35 payload inside an SEI payload_type=4
// message, with a NAL header in front, matching what an H.264 bitstream
// actually carries (no emulation-prevention bytes needed for this test
// data, since it never contains 0x00 0x00 0x0[0-3]).
func buildSEINALU(headerLen int, t35 []byte) []byte {
	nalu := make([]byte, headerLen)
	nalu = append(nalu, seiPayloadTypeUserDataRegistered, byte(len(t35)))
	nalu = append(nalu, t35...)
	nalu = append(nalu, 0x80) // rbsp_trailing_bits
	return nalu
}

func TestExtractGA94FromSEINALUH264(t *testing.T) {
	want := []CCTriplet{{CCValid: true, CCType: ccTypeNTSCField1, B1: 0x94, B2: 0xAE}}
	nalu := buildSEINALU(1, buildGA94T35(want))

	got := ExtractGA94FromSEINALU(nalu, 1)
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("ExtractGA94FromSEINALU = %+v, want %+v", got, want)
	}
}

func TestExtractGA94FromSEINALUHEVC(t *testing.T) {
	want := []CCTriplet{{CCValid: true, CCType: ccTypeDTVCCData, B1: 0x01, B2: 0x02}}
	nalu := buildSEINALU(2, buildGA94T35(want))

	got := ExtractGA94FromSEINALU(nalu, 2)
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("ExtractGA94FromSEINALU = %+v, want %+v", got, want)
	}
}

func TestExtractGA94FromSEINALUSkipsOtherPayloadTypes(t *testing.T) {
	want := []CCTriplet{{CCValid: true, CCType: ccTypeNTSCField1, B1: 0x11, B2: 0x22}}
	t35 := buildGA94T35(want)

	nalu := make([]byte, 1)
	// An unrelated SEI message (payload_type 1, e.g. pic_timing) comes first.
	nalu = append(nalu, 0x01, 0x02, 0xAA, 0xBB)
	nalu = append(nalu, seiPayloadTypeUserDataRegistered, byte(len(t35)))
	nalu = append(nalu, t35...)
	nalu = append(nalu, 0x80)

	got := ExtractGA94FromSEINALU(nalu, 1)
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("ExtractGA94FromSEINALU = %+v, want %+v", got, want)
	}
}

func TestExtractGA94FromSEINALUTooShort(t *testing.T) {
	if got := ExtractGA94FromSEINALU([]byte{0x06}, 1); got != nil {
		t.Errorf("ExtractGA94FromSEINALU = %v, want nil for empty payload", got)
	}
}
