package image

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mogden/flux2imd/decode"
	"github.com/mogden/flux2imd/format"
)

func oneSectorFormat() format.Info {
	return format.Info{
		Name:            "TESTFMT",
		SSize:           0,
		FirstSectorID:   1,
		SectorsPerTrack: 2,
		Encoding:        format.FM5,
	}
}

func diskWithOneTrack(t *testing.T, status int, sectors []decode.Sector) *decode.Disk {
	t.Helper()
	info := oneSectorFormat()
	info.SectorsPerTrack = len(sectors)
	disk := decode.NewDisk()
	disk.LogCylHead(0, 0)
	disk.SetTrack(0, 0, &decode.Track{
		Status:       status,
		Cylinder:     0,
		Side:         0,
		Fmt:          info,
		SlotToSector: []byte{1, 2}[:len(sectors)],
		Sectors:      sectors,
	})
	return disk
}

func TestWriteIMDHeaderFormat(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, time.March, 5, 14, 7, 9, 0, time.UTC)
	if err := WriteIMDHeader(&buf, "test.raw", at); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "IMD 1.18 05/03/2026 14:07:09\r\n") {
		t.Fatalf("unexpected header: %q", got)
	}
	if !strings.Contains(got, "Created from test.raw by flux2imd\r\n\x1a") {
		t.Fatalf("missing creation comment: %q", got)
	}
}

func TestWriteIMDSkipsBadIDTrack(t *testing.T) {
	disk := diskWithOneTrack(t, decode.BadID, []decode.Sector{
		{Status: decode.Good, Copies: []decode.SectorCopy{{Data: []uint16{0, 0}}}},
	})
	var buf bytes.Buffer
	var warned bool
	err := WriteIMD(&buf, disk, "x.raw", time.Now(), func(string, ...interface{}) { warned = true })
	if err != nil {
		t.Fatal(err)
	}
	if !warned {
		t.Fatal("expected a warning callback for the skipped BadID track")
	}
}

func TestWriteIMDSameFillCompression(t *testing.T) {
	sectors := []decode.Sector{
		{Status: decode.Good, Copies: []decode.SectorCopy{{Data: []uint16{0xaa, 0xaa}}}},
		{Status: decode.IDAMGood, Copies: nil},
	}
	disk := diskWithOneTrack(t, 0, sectors)
	var buf bytes.Buffer
	if err := WriteIMD(&buf, disk, "x.raw", time.Now(), nil); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// Track block starts right after the header's 0x1a terminator.
	idx := bytes.IndexByte(data, 0x1a)
	track := data[idx+1:]
	// mode, cyl, head, nsec, sizecode = 5 bytes, then a 2-byte slot map.
	sectorPayload := track[5+2:]
	if sectorPayload[0] != 2 {
		t.Fatalf("sector 0 should use the same-fill type byte 2, got %d", sectorPayload[0])
	}
	if sectorPayload[1] != 0xaa {
		t.Fatalf("sector 0's fill byte should be 0xaa, got %#x", sectorPayload[1])
	}
	// Sector 1's type byte follows directly: type 2 consumed exactly one
	// extra fill byte, so no length field separates the two sectors.
	if sectorPayload[2] != 0 {
		t.Fatalf("sector 1 has no good data and should use type byte 0, got %d", sectorPayload[2])
	}
	if len(sectorPayload) != 3 {
		t.Fatalf("expected exactly 3 trailing bytes (2 same-fill + 1 no-data), got %d", len(sectorPayload))
	}
}

func TestSameFill(t *testing.T) {
	if !sameFill([]byte{7, 7, 7}) {
		t.Fatal("uniform bytes should report sameFill")
	}
	if sameFill([]byte{7, 8, 7}) {
		t.Fatal("non-uniform bytes should not report sameFill")
	}
	if sameFill(nil) {
		t.Fatal("empty data should not report sameFill")
	}
}
