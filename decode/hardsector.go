package decode

import (
	"github.com/mogden/flux2imd/bitrev"
	"github.com/mogden/flux2imd/dpll"
	"github.com/mogden/flux2imd/format"
)

// conflicts resolves the one byte value an LSI cylinder-id pattern and a
// ZDS sector-id pattern can both plausibly match for a given hard-sector
// slot; 255 means no ambiguity is possible at that slot. Transcribed
// verbatim from decoders.c's conflicts[32].
var conflicts = [32]byte{
	0, 64, 32, 255, 16, 255, 48, 255,
	8, 72, 40, 255, 24, 255, 56, 255,
	4, 68, 36, 255, 20, 255, 52, 255,
	12, 76, 44, 255, 28, 255, 60, 255,
}

// lsiInterleave is the physical-slot-to-logical-sector map LSI 8" drives
// wire into their controller, transcribed verbatim from decoders.c's
// lsiInterleave[32].
var lsiInterleave = [32]int{
	0, 11, 22, 1, 12, 23, 2, 13, 24, 3, 14, 25, 4, 15, 26, 5,
	16, 27, 6, 17, 28, 7, 18, 29, 8, 19, 30, 9, 20, 31, 10, 21,
}

// clonePatterns returns a copy of info whose Patterns slice is
// independently mutable, so makeHS5Patterns/makeHS8Patterns can rewrite a
// per-slot dynamic match value without corrupting format.Table's shared
// pattern arrays (several table entries alias the same backing array).
func clonePatterns(info format.Info) format.Info {
	info.Patterns = append([]format.Pattern(nil), info.Patterns...)
	return info
}

func setPatternMatch(info format.Info, kind format.MarkerKind, match uint64) {
	for i := range info.Patterns {
		if info.Patterns[i].Kind == kind {
			info.Patterns[i].Match = match
		}
	}
}

// makeHS5Patterns rewrites info's MTechSector pattern for the current
// (cylinder, slot), grounded on formats.c's makeHS5Patterns: the sync
// field, cylinder byte and slot byte are all encoded into one 24-bit value
// with a fixed 0xff lead byte, continuing from seed nibble 0xa.
func makeHS5Patterns(info format.Info, cylinder, slot int) {
	val := uint32(0xff0000 + (cylinder << 8) + slot)
	setPatternMatch(info, format.MTechSector, format.Encode(val, 0xa, info))
}

// makeHS8Patterns rewrites info's LSI and ZDS sector patterns for the
// current (cylinder, slot). Grounded on formats.c's makeHS8Patterns: LSI
// encodes the bit-reversed cylinder byte (cylinder 0 is wired as physical
// track 32 on an LSI drive), ZDS encodes the slot in the high byte and the
// cylinder in the low byte.
func makeHS8Patterns(info format.Info, cylinder, slot int) {
	cylByte := cylinder
	if cylByte == 0 {
		cylByte = 32
	}
	lsiVal := uint32(bitrev.Byte(byte(cylByte*2 + 1)))
	zdsVal := uint32(((slot + 0x80) << 8) + cylinder)
	setPatternMatch(info, format.LSISector, format.Encode(lsiVal, 0, info))
	setPatternMatch(info, format.ZDSSector, format.Encode(zdsVal, 0, info))
}

// hs8Sync matches the LSI/ZDS sector marker expected at the given physical
// slot, re-matching with a shorter window on a known ambiguous byte value
// to break the tie. Grounded on decoders.c's hs8Sync.
func hs8Sync(d *dpll.DPLL, src dpll.Source, info format.Info, cylinder, slot int) format.MarkerKind {
	patched := clonePatterns(info)
	makeHS8Patterns(patched, cylinder, slot)

	kind := format.MatchPattern(d, src, patched, 30)
	if kind == format.NoMatch {
		return format.NoMatch
	}
	if slot < len(conflicts) && conflicts[slot] != 255 {
		// Ambiguous slot: confirm against the narrower window the original
		// uses once a short (possibly coincidental) match is seen.
		if again := format.MatchPattern(d, src, patched, 2); again != format.NoMatch {
			kind = again
		}
	}
	return kind
}

// chkZeroHeader reports whether the two link bytes following an 8"
// hard-sector marker are both zero, a basic integrity check 8" hard-sector
// controllers perform before trusting the sector. Grounded on decoders.c's
// chkZeroHeader.
func chkZeroHeader(d *dpll.DPLL, src dpll.Source, info format.Info) bool {
	for i := 0; i < 2; i++ {
		val, ok := format.GetByte(d, src, info)
		if !ok || val&0xff != 0 {
			return false
		}
	}
	return true
}

// DecodeHardSector16Track decodes an MTECH 5.25" hard-sector track, which
// carries 16 fixed physical slots (one per index pulse). Grounded on
// decoders.c's hs5GetTrack.
func (c *Context) DecodeHardSector16Track(d *dpll.DPLL, src dpll.Source, cylinder, side int, tbl []format.Info) {
	c.hardSectored = true
	for slot := 0; slot < c.Format.SectorsPerTrack; slot++ {
		patched := clonePatterns(c.Format)
		makeHS5Patterns(patched, cylinder, slot)

		kind := format.MatchPattern(d, src, patched, 30)
		if kind != format.MTechSector {
			continue
		}

		idamCyl, ok := format.GetByte(d, src, c.Format)
		if !ok {
			continue
		}
		if idamCyl&0xff != cylinder&0xff {
			c.Log.Warn("slot %d: expected cylinder %d, read %d", slot, cylinder, idamCyl&0xff)
		}

		pos := -slot
		c.AddIdam(pos, IDAM{Cylinder: byte(idamCyl), Side: byte(side), SectorID: byte(slot + c.Format.FirstSectorID), SSize: byte(c.Format.SSize)}, tbl)

		// Grounded on decoders.c's hs5GetTrack: getData((slot<<8)+(readCylinder
		// & 0xff), rawData, 269) - the slot and cylinder bytes the matcher
		// already read fold into the checksum as the two leading bytes.
		marker := (slot << 8) + int(idamCyl&0xff)
		data, good := getData(d, src, c.Format, marker, 269)
		// addSectorData stores only the 257 payload+CRC bytes past the
		// leading cylinder/slot/sync framing, matching decoders.c's
		// addSectorData(..., 257, rawData+12).
		if data != nil {
			data = data[12:]
		}
		c.AddSectorData(pos, good, data, tbl)
	}
}

// DecodeHardSector32Track decodes an 8" hard-sector track (32 fixed
// physical slots), which may be either LSI or ZDS formatted; the two
// families share a cylinder/slot range and occasionally collide on the
// same bit pattern, so a track found to be ZDS partway through a scan
// that started as LSI restarts from slot 0 under the corrected format.
// Grounded on decoders.c's hs8GetTrack.
func (c *Context) DecodeHardSector32Track(d *dpll.DPLL, src dpll.Source, cylinder, side int, tbl []format.Info) {
	c.hardSectored = true

	for slot := 0; slot < c.Format.SectorsPerTrack; slot++ {
		kind := hs8Sync(d, src, c.Format, cylinder, slot)
		switch kind {
		case format.NoMatch:
			continue
		case format.ZDSSector:
			if !c.Format.Options.Has(format.OptZDS) {
				if zds, ok := format.ByName("ZDS"); ok {
					c.Log.Always("reclassifying track %d/%d as ZDS", cylinder, side)
					c.UpdateTrackFmt(zds)
					c.Track.Sectors = make([]Sector, zds.SectorsPerTrack)
					c.Track.SlotToSector = make([]byte, zds.SectorsPerTrack)
					for i := range c.Track.SlotToSector {
						c.Track.SlotToSector[i] = 0xff
					}
					slot = -1
					continue
				}
			}
		case format.LSISector:
			if !chkZeroHeader(d, src, c.Format) {
				continue
			}
		}

		pos := -slot
		if slot < 0 {
			continue
		}
		sectorID := slot
		if c.Format.Options.Has(format.OptLSI) && slot < len(lsiInterleave) {
			sectorID = lsiInterleave[slot]
		}
		c.AddIdam(pos, IDAM{Cylinder: byte(cylinder), Side: byte(side), SectorID: byte(sectorID + c.Format.FirstSectorID), SSize: byte(c.Format.SSize)}, tbl)

		// Grounded on decoders.c's hs8GetTrack: LSI passes the bare slot as
		// the marker (getData(slot, rawData, 131)); ZDS folds the cylinder
		// and slot into a composite value (getData((cylinder<<8)+slot+0x80,
		// rawData, 138)). The stored payload then skips the framing bytes
		// getData used to build the checksum: 1 for LSI, 2 for ZDS.
		var data []uint16
		var good bool
		var skip int
		if kind == format.LSISector {
			data, good = getData(d, src, c.Format, slot, 131)
			skip = 1
		} else {
			data, good = getData(d, src, c.Format, (cylinder<<8)+slot+0x80, 138)
			skip = 2
		}
		if data != nil {
			data = data[skip:]
		}
		c.AddSectorData(pos, good, data, tbl)
	}
}
