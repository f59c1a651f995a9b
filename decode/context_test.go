package decode

import (
	"testing"

	"github.com/mogden/flux2imd/format"
)

func testFormat() format.Info {
	return format.Info{
		Name:            "TEST5",
		SSize:           1,
		FirstSectorID:   1,
		SectorsPerTrack: 9,
		FirstIDAM:       100,
		FirstData:       140,
		Spacing:         400,
	}
}

func TestAddIdamAndCheckTrack(t *testing.T) {
	info := testFormat()
	c := NewContext(nil)
	c.InitTrack(0, 0, info)
	c.ResetTracker()

	for i := 0; i < info.SectorsPerTrack; i++ {
		pos := info.FirstIDAM + i*info.Spacing
		idam := IDAM{Cylinder: 0, Side: 0, SectorID: byte(1 + i), SSize: info.SSize}
		if err := c.AddIdam(pos, idam, []format.Info{info}); err != nil {
			t.Fatalf("AddIdam(%d): %v", i, err)
		}
	}
	if c.CheckTrack() {
		t.Fatal("CheckTrack should still be false before any sector data arrives")
	}
	if c.Track.CntGoodIdam != info.SectorsPerTrack {
		t.Fatalf("CntGoodIdam = %d, want %d", c.Track.CntGoodIdam, info.SectorsPerTrack)
	}
	for i := range c.Track.SlotToSector {
		if c.Track.SlotToSector[i] != byte(1+i) {
			t.Fatalf("slot %d mapped to sector %d, want %d", i, c.Track.SlotToSector[i], 1+i)
		}
	}
}

func TestFixSectorMapReconstructsInterleave(t *testing.T) {
	info := testFormat()
	info.SectorsPerTrack = 6
	c := NewContext(nil)
	c.InitTrack(0, 0, info)

	// Interleave-2 layout over 6 sectors starting at sector 1:
	// slot: 0 1 2 3 4 5 -> sector: 1 4 2 5 3 6
	want := []byte{1, 4, 2, 5, 3, 6}
	// Drop one IDAM (slot 3) to force interleave reconstruction.
	for slot, sec := range want {
		if slot == 3 {
			continue
		}
		c.Track.SlotToSector[slot] = sec
		c.Track.Sectors[slot].Status |= IDAMGood
		c.Track.CntGoodIdam++
	}
	c.Track.CntAnyData = info.SectorsPerTrack

	c.FinaliseTrack()

	if c.Track.Status&FixedID == 0 {
		t.Fatalf("expected FixedID status, got %#x", c.Track.Status)
	}
	if c.Track.SlotToSector[3] != want[3] {
		t.Fatalf("slot 3 reconstructed as %d, want %d", c.Track.SlotToSector[3], want[3])
	}
	if c.Track.Sectors[3].Status&Fixed == 0 {
		t.Fatal("reconstructed slot should carry the Fixed flag")
	}
}

func TestFinaliseTrackMarksBadIDWhenNoInterleaveFits(t *testing.T) {
	info := testFormat()
	info.SectorsPerTrack = 4
	c := NewContext(nil)
	c.InitTrack(0, 0, info)

	// A sector map that cannot be explained by any interleave 1..12 over 4
	// sectors: 1 at slot 0, 1 at slot 2 (duplicate id), none elsewhere.
	c.Track.SlotToSector[0] = 1
	c.Track.Sectors[0].Status |= IDAMGood
	c.Track.SlotToSector[2] = 1
	c.Track.Sectors[2].Status |= IDAMGood
	c.Track.CntGoodIdam = 2
	c.Track.CntAnyData = 2

	c.FinaliseTrack()

	if c.Track.Status&BadID == 0 {
		t.Fatalf("expected BadID status, got %#x", c.Track.Status)
	}
}

func TestCleanUpSuspectClearsAgreeingBytes(t *testing.T) {
	copies := []SectorCopy{
		{Data: []uint16{0x41 | format.Suspect, 0x42, 0x43 | format.Suspect}},
		{Data: []uint16{0x41, 0x42 | format.Suspect, 0x99 | format.Suspect}},
	}
	CleanUpSuspect(copies)

	if copies[0].Data[0]&format.Suspect != 0 || copies[1].Data[0]&format.Suspect != 0 {
		t.Fatal("byte 0 agrees across copies and should have its Suspect bit cleared in both")
	}
	if copies[0].Data[1]&format.Suspect != 0 || copies[1].Data[1]&format.Suspect != 0 {
		t.Fatal("byte 1 agrees across copies and should have its Suspect bit cleared in both")
	}
	if copies[0].Data[2]&format.Suspect == 0 || copies[1].Data[2]&format.Suspect == 0 {
		t.Fatal("byte 2 disagrees (0x43 vs 0x99) and must stay Suspect in both copies")
	}
}
