package image

import (
	"bytes"
	"testing"

	"github.com/mogden/flux2imd/decode"
	"github.com/mogden/flux2imd/format"
)

func TestWriteIMGPadsMissingSectors(t *testing.T) {
	info := format.Info{Name: "TESTFMT", SSize: 0, SectorsPerTrack: 2, Encoding: format.FM5}
	disk := decode.NewDisk()
	disk.LogCylHead(0, 0)
	disk.SetTrack(0, 0, &decode.Track{
		Fmt: info,
		Sectors: []decode.Sector{
			{Status: decode.Good, Copies: []decode.SectorCopy{{Data: []uint16{1, 2, 3}}}},
			{Status: decode.IDAMGood},
		},
	})

	var buf bytes.Buffer
	if err := WriteIMG(&buf, disk); err != nil {
		t.Fatal(err)
	}

	sectorBytes := info.SectorBytes()
	got := buf.Bytes()
	if len(got) != 2*sectorBytes {
		t.Fatalf("expected %d bytes (2 sectors), got %d", 2*sectorBytes, len(got))
	}

	want := make([]byte, sectorBytes)
	copy(want, []byte{1, 2, 3})
	for i := 3; i < sectorBytes; i++ {
		want[i] = missingSectorFill
	}
	if !bytes.Equal(got[:sectorBytes], want) {
		t.Fatalf("sector 0 payload mismatch:\ngot  %x\nwant %x", got[:sectorBytes], want)
	}

	fill := bytes.Repeat([]byte{missingSectorFill}, sectorBytes)
	if !bytes.Equal(got[sectorBytes:], fill) {
		t.Fatal("sector 1 (no good data) should be entirely fill bytes")
	}
}

func TestWriteIMGSkipsNoIMDFormat(t *testing.T) {
	info := format.Info{Name: "ZDS-LIKE", SSize: 0, SectorsPerTrack: 1, Options: format.OptNoIMD}
	disk := decode.NewDisk()
	disk.LogCylHead(0, 0)
	disk.SetTrack(0, 0, &decode.Track{
		Fmt: info,
		Sectors: []decode.Sector{
			{Status: decode.Good, Copies: []decode.SectorCopy{{Data: []uint16{9}}}},
		},
	})

	var buf bytes.Buffer
	if err := WriteIMG(&buf, disk); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("OptNoIMD track should produce no output, got %d bytes", buf.Len())
	}
}
