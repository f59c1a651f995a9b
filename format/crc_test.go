package format

import "testing"

// TestCRC8CarryPropagatesToNextByte pins formats.c's crc8 end-around-carry
// semantics: the carry bit out of one byte's addition is folded into the
// NEXT byte's sum, not into the byte that produced it. {0xff, 0xff, 0x01}
// only checksums to 0x00 under that rule - folding the carry back into the
// same iteration (as a naive add-with-carry might) yields 0x01 instead.
func TestCRC8CarryPropagatesToNextByte(t *testing.T) {
	data := []uint16{0xff, 0xff, 0x01, 0x00}
	if !CRC8(data, 0) {
		t.Fatalf("CRC8(%v) = false, want true (trailer 0x00)", data)
	}
	bad := []uint16{0xff, 0xff, 0x01, 0x01}
	if CRC8(bad, 0) {
		t.Fatalf("CRC8(%v) = true, want false (trailer should be 0x00, not 0x01)", bad)
	}
}

func TestCRC8SingleByte(t *testing.T) {
	if !CRC8([]uint16{0x80, 0x80}, 0) {
		t.Fatal("CRC8({0x80, 0x80}) should pass: one data byte checksums to itself")
	}
}
