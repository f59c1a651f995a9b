package decode

import (
	"github.com/mogden/flux2imd/dpll"
	"github.com/mogden/flux2imd/format"
)

// ssSearchLimit is the byte window ssGetTrack hands to matchPattern between
// markers, grounded on decoders.c's ssGetTrack (matchPattern(1200)).
const ssSearchLimit = 1200

// idamFieldLen is the marker/cylinder/side/sectorId/sSize/crcHi/crcLo field
// count a standard IDAM carries; hpIdamFieldLen is HP's shorter layout,
// which has no side or sSize field. Grounded on decoders.c's ssGetTrack
// IDAM case (getData(matchType, rawData, matchType == HP_IDAM ? 5 : 7)).
const (
	idamFieldLen   = 7
	hpIdamFieldLen = 5
)

// bytePos converts the DPLL's half-bit counter into a file-relative byte
// offset, matching the 16-half-bits-per-byte convention matchPattern/getByte
// already use.
func bytePos(d *dpll.DPLL) int { return int(d.BitCount() / 16) }

// getIdam reads a sector header immediately following a matched IDAM marker
// and validates it against the format's CRC. Grounded on decoders.c's
// ssGetTrack IDAM case: the matched marker byte itself is the first CRC
// byte (getData synthesizes it), HP's IDAM carries only cylinder and
// sector id (no side or sSize field, and fixed sSize 1/256 bytes), while
// every other soft-sector family shares the IBM cylinder/side/sectorId/
// sSize layout.
func getIdam(d *dpll.DPLL, src dpll.Source, info format.Info, marker format.MarkerKind) (IDAM, bool) {
	length := idamFieldLen
	if info.Options.Has(format.OptHP) {
		length = hpIdamFieldLen
	}
	buf, ok := getData(d, src, info, int(marker), length)
	if !ok {
		return IDAM{}, false
	}
	if info.Options.Has(format.OptHP) {
		return IDAM{Cylinder: byte(buf[1]), Side: 0, SectorID: byte(buf[2]), SSize: 1}, true
	}
	return IDAM{
		Cylinder: byte(buf[1]),
		Side:     byte(buf[2]),
		SectorID: byte(buf[3]),
		SSize:    byte(buf[4]),
	}, true
}

// getData reads length codewords framing one marker-prefixed field (an
// IDAM or a sector body), synthesizes the matched marker's byte(s) as the
// leading CRC input, validates the block against the format's CRC, and
// clears the Suspect bit on every checked byte once it passes (a good
// checksum is itself evidence every ambiguous clock bit resolved
// correctly). marker is a plain int rather than a format.MarkerKind since
// the hard-sector callers pass composite slot/cylinder values no
// MarkerKind enumerates. Grounded on decoders.c's getData: the address
// mark is never clocked onto the disk as a data byte, so every format's
// checksum only verifies by including the byte the matcher consumed to
// find the field; ZDS/MTECH fold a second framing byte (slot or cylinder)
// into the same leading position, and HP's checksum excludes the marker
// byte entirely even though it is still returned for field indexing.
func getData(d *dpll.DPLL, src dpll.Source, info format.Info, marker int, length int) ([]uint16, bool) {
	buf := make([]uint16, length)
	buf[0] = uint16(marker & 0xff)
	start := 1
	// Compare the vendor bits exactly: TI's option value also contains
	// every bit of OptMTech, so Has(OptMTech) would match TI too.
	if v := info.Options & 7; v == format.OptZDS&7 || v == format.OptMTech&7 {
		buf[1] = uint16((marker >> 8) & 0xff)
		start = 2
	}

	for i := start; i < length; i++ {
		val, ok := format.GetByte(d, src, info)
		if !ok {
			return nil, false
		}
		buf[i] = uint16(val)
	}

	crcBuf := buf
	if info.Options.Has(format.OptHP) {
		crcBuf = buf[1:]
	}
	good := info.CRC(crcBuf, info.CRCInit)
	if good {
		for i := range crcBuf {
			crcBuf[i] &^= format.Suspect
		}
	}
	return buf, good
}

// isIdamMarker and isDataMarker classify which of the marker kinds a
// successful matchPattern can return belong to the IDAM family versus the
// data (good or deleted) family, across every soft-sector encoding this
// package supports.
func isIdamMarker(k format.MarkerKind) bool {
	switch k {
	case format.IDAM, format.M2FMIDAM, format.HPIDAM, format.TIIDAM:
		return true
	}
	return false
}

func isDataMarker(k format.MarkerKind) bool {
	switch k {
	case format.DataAM, format.DeletedAM,
		format.M2FMDataAM, format.M2FMDeletedAM,
		format.HPDataAM, format.HPDeletedAM,
		format.TIDataAM:
		return true
	}
	return false
}

// DecodeSoftSectorTrack runs ssGetTrack's scan across as many revolutions
// as the flux source holds: it repeatedly matches the next marker, routes
// IDAM and data markers into the sector tracker, and stops once every
// sector slot reads good, or no marker turns up within ssSearchLimit bytes
// (which includes the source running out). The tracker's
// per-revolution reset is driven by the source's index callback (see
// disk.go), not by a loop here, since a single matchPattern call can span
// an index boundary. Grounded on decoders.c's ssGetTrack.
func (c *Context) DecodeSoftSectorTrack(d *dpll.DPLL, src dpll.Source, tbl []format.Info) {
	for {
		kind := format.MatchPattern(d, src, c.Format, ssSearchLimit)
		if kind == format.NoMatch {
			return
		}

		switch {
		case isIdamMarker(kind):
			pos := bytePos(d)
			if idam, ok := getIdam(d, src, c.Format, kind); ok {
				c.AddIdam(pos, idam, tbl)
			}
		case isDataMarker(kind):
			pos := bytePos(d)
			sectorLen := c.Format.SectorBytes()
			data, ok := getData(d, src, c.Format, int(kind), sectorLen+3)
			// addSectorData stores the payload after the synthesized marker
			// byte, matching decoders.c's addSectorData(dataPos, result,
			// sectorLen+2, rawData+1).
			if data != nil {
				data = data[1:]
			}
			c.AddSectorData(pos, ok, data, tbl)
		default:
			// Gap/Sync/IBMGap/IndexAM: not a field start, keep scanning.
		}

		if c.CheckTrack() {
			return
		}
	}
}
