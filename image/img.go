package image

import (
	"bufio"
	"io"

	"github.com/mogden/flux2imd/decode"
	"github.com/mogden/flux2imd/format"
)

// missingSectorFill is the byte IMG uses to pad a slot with no good data,
// 0xC7, the standard ISIS format byte.
const missingSectorFill = 0xc7

// WriteIMG writes every decoded track of disk as a flat sector dump in
// slot order: no header, no sector-id map, just SectorsPerTrack*SectorBytes
// bytes per track, missingSectorFill-padded where a sector never read
// good. Tracks whose format carries format.OptNoIMD (ZDS, MTech, TI),
// and any track that ended up decode.BadID, are skipped outright, the
// same gate WriteIMD applies. Grounded on writeImage.c's writeImgTrack and
// its O_NOIMD gate.
func WriteIMG(w io.Writer, disk *decode.Disk) error {
	bw := bufio.NewWriter(w)
	for cyl := 0; cyl <= disk.MaxCylinder; cyl++ {
		for head := 0; head <= disk.MaxHead; head++ {
			if !disk.HasTrack(cyl, head) {
				continue
			}
			t := disk.GetTrack(cyl, head)
			if t == nil || t.Status&decode.BadID != 0 || t.Fmt.Options.Has(format.OptNoIMD) {
				continue
			}
			if err := writeIMGTrack(bw, t); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func writeIMGTrack(w *bufio.Writer, t *decode.Track) error {
	sectorBytesLen := t.Fmt.SectorBytes()
	fill := make([]byte, sectorBytesLen)
	for i := range fill {
		fill[i] = missingSectorFill
	}

	for slot := 0; slot < t.Fmt.SectorsPerTrack; slot++ {
		sec := t.Sectors[slot]
		data := bestCopy(sec, sectorBytesLen)
		if sec.Status&decode.DataGood == 0 || data == nil {
			if _, err := w.Write(fill); err != nil {
				return err
			}
			continue
		}
		if len(data) < sectorBytesLen {
			padded := make([]byte, sectorBytesLen)
			copy(padded, data)
			for i := len(data); i < sectorBytesLen; i++ {
				padded[i] = missingSectorFill
			}
			data = padded
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}
