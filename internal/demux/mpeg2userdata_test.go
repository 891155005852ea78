package demux

import "testing"

func TestMPEG2UserDataGA94(t *testing.T) {
	ud := []byte{
		'G', 'A', '9', '4', // identifier
		0x03,       // type_code: cc_data()
		0x40 | 0x02, // process_cc_data_flag=1, cc_count=2
		0xFF,       // marker byte
		0xFC, 0x80, 0x80, // cc_valid=1, cc_type=0 (field 1)
		0xFD, 0x01, 0x02, // cc_valid=1, cc_type=1 (field 2)
	}
	d := NewMPEG2UserDataDecoder()
	got := d.ParseUserData(ud)
	if len(got) != 2 {
		t.Fatalf("got %d triplets, want 2", len(got))
	}
	if got[0].CCType != 0 || got[0].B1 != 0x80 || got[0].B2 != 0x80 {
		t.Errorf("triplet 0 = %+v", got[0])
	}
	if got[1].CCType != 1 || got[1].B1 != 0x01 || got[1].B2 != 0x02 {
		t.Errorf("triplet 1 = %+v", got[1])
	}
}

func TestMPEG2UserDataReplayTV(t *testing.T) {
	ud := []byte{0xBB, 0x02, 0x11, 0x22, 0xCC, 0x02, 0x33, 0x44}
	d := NewMPEG2UserDataDecoder()
	got := d.ParseUserData(ud)
	if len(got) != 2 {
		t.Fatalf("got %d triplets, want 2", len(got))
	}
	if got[0].CCType != 1 || got[0].B1 != 0x11 || got[0].B2 != 0x22 {
		t.Errorf("field2 triplet = %+v", got[0])
	}
	if got[1].CCType != 0 || got[1].B1 != 0x33 || got[1].B2 != 0x44 {
		t.Errorf("field1 triplet = %+v", got[1])
	}
}

func TestMPEG2UserDataDivicom(t *testing.T) {
	ud := []byte{0x02, 0x09, 0x80, 0x80, 0x02, 0x0A, 0x11, 0x22}
	d := NewMPEG2UserDataDecoder()
	got := d.ParseUserData(ud)
	if len(got) != 1 || got[0].B1 != 0x11 || got[0].B2 != 0x22 {
		t.Fatalf("divicom triplet = %+v", got)
	}
}

func TestMPEG2UserDataDishNetworkType02(t *testing.T) {
	// "05 02" marker, id/count/unknown (5 bytes), type=0x02, then 4 payload bytes.
	ud := []byte{0x05, 0x02, 0x04, 0x00, 0x01, 0x00, 0x00, 0x02, 0x09, 0xAA, 0xBB, 0x02}
	d := NewMPEG2UserDataDecoder()
	got := d.ParseUserData(ud)
	if len(got) != 1 {
		t.Fatalf("got %d triplets, want 1", len(got))
	}
	if got[0].CCType != 0 || got[0].B1 != 0xAA || got[0].B2 != 0xBB {
		t.Errorf("dish triplet = %+v", got[0])
	}
}

func TestMPEG2UserDataUnrecognized(t *testing.T) {
	d := NewMPEG2UserDataDecoder()
	if got := d.ParseUserData([]byte{0x06, 0x02, 0x00, 0x00}); got != nil {
		t.Errorf("expected nil for unrecognized marker, got %+v", got)
	}
}
