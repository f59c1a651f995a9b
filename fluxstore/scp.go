package fluxstore

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// SuperCard Pro header field offsets, grounded on original_source/flux2imd/scp.h.
const (
	scpHeaderLen  = 16
	scpSig        = "SCP"
	scpOffFlags   = 0x08
	scpOffNumRevs = 0x05
	scpOffStart   = 0x06
	scpOffEnd     = 0x07
	scpOffRes     = 0x0B
	scpOffHeads   = 0x0A

	scpFlagIndex    = 1 << 0
	scpFlagRPM      = 1 << 2
	scpFlagExtended = 1 << 6

	scpMaxRev = 10
)

// LoadSCP decodes a complete SuperCard Pro .scp file into one Flux per
// physical track, indexed by (cylinder*2 + head). Tracks absent from the
// file (a zero offset-table entry) are omitted from the result.
func LoadSCP(data []byte) (map[int]*Flux, error) {
	if len(data) < scpHeaderLen || string(data[0:3]) != scpSig {
		return nil, errors.New("fluxstore: not a valid SCP file")
	}
	header := data[:scpHeaderLen]
	numRevs := int(header[scpOffNumRevs])
	if numRevs > scpMaxRev {
		numRevs = scpMaxRev
	}
	endTrack := int(header[scpOffEnd])
	resolution := header[scpOffRes]
	flags := header[scpOffFlags]

	tableOffset := scpHeaderLen
	if flags&scpFlagExtended != 0 {
		tableOffset = 0x80
	}
	if tableOffset+4*(endTrack+1) > len(data) {
		return nil, errors.New("fluxstore: truncated SCP offset table")
	}

	result := make(map[int]*Flux)
	nominalRPM := 300.0
	if flags&scpFlagRPM != 0 {
		nominalRPM = 360.0
	}
	sclkNs := 25.0 * float64(resolution+1) // ns per tick: 25ns x (resolution+1)

	for trk := 0; trk <= endTrack; trk++ {
		off := int(binary.LittleEndian.Uint32(data[tableOffset+4*trk : tableOffset+4*trk+4]))
		if off == 0 {
			continue
		}
		f, err := loadSCPTrack(data, off, numRevs, sclkNs, nominalRPM)
		if err != nil {
			return nil, errors.Wrapf(err, "fluxstore: scp track %d", trk)
		}
		f.SetCylHead(int16(trk/2), int16(trk%2))
		result[trk] = f
	}
	if len(result) == 0 {
		return nil, errors.New("fluxstore: SCP file has no tracks")
	}
	return result, nil
}

// IndexAligned reports whether the SCP flag bits indicate the flux data
// starts at the index pulse. Callers should log a warning when false, since
// downstream slot-offset assumptions rely on index alignment.
func IndexAligned(data []byte) bool {
	if len(data) < scpHeaderLen {
		return false
	}
	return data[scpOffFlags]&scpFlagIndex != 0
}

type scpRevEntry struct {
	indexTicks uint32
	fluxCnt    uint32
	base       uint32
}

// loadSCPTrack decodes one "TRKnn" track data header and its nRev flux
// revolutions into a Flux, grounded on scp.c's scpLoadTrk.
func loadSCPTrack(data []byte, trackOff, numRevs int, sclkNs, nominalRPM float64) (*Flux, error) {
	if trackOff+4 > len(data) || string(data[trackOff:trackOff+3]) != "TRK" {
		return nil, errors.New("missing track data header")
	}
	p := trackOff + 4
	revs := make([]scpRevEntry, numRevs)
	var fluxTotal uint32
	for i := 0; i < numRevs; i++ {
		if p+12 > len(data) {
			return nil, errors.New("truncated revolution table")
		}
		revs[i].indexTicks = binary.LittleEndian.Uint32(data[p : p+4])
		revs[i].fluxCnt = binary.LittleEndian.Uint32(data[p+4 : p+8])
		revs[i].base = binary.LittleEndian.Uint32(data[p+8 : p+12])
		fluxTotal += revs[i].fluxCnt
		p += 12
	}

	f := New(fluxTotal, numRevs+1, sclkNs, nominalRPM, 0)

	for i := 0; i < numRevs; i++ {
		actualRPM := 60.0 / (float64(revs[i].indexTicks) * 25e-9)
		f.SetActualRPM(actualRPM)
		f.AddIndex(int16(SSSTART), 0)

		base := trackOff + int(revs[i].base)
		pendingDelta := uint32(0)
		for j := uint32(0); j < revs[i].fluxCnt; j++ {
			sampleOff := base + int(j)*2
			if sampleOff+2 > len(data) {
				return nil, errors.New("truncated flux sample data")
			}
			sample := binary.BigEndian.Uint16(data[sampleOff : sampleOff+2])
			if sample == 0 {
				pendingDelta += 0x10000
				continue
			}
			f.AddDelta(pendingDelta + uint32(sample))
			pendingDelta = 0
		}
	}
	f.End()
	return f, nil
}
