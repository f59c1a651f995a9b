// Package decode implements the encoding detector, sector decoder and track
// assembler (components C5, C6, C7): it drives a dpll.DPLL and the format
// package's pattern matcher across one track's flux, accumulates sector
// copies with suspect-byte voting, and reconstructs missing sector ids by
// interleave inference.
//
// Grounded on original_source/flux2imd/decoders.c, sectorManager.c,
// trackManager.c, util.c (setInitialFormat/probe) and formats.c (probe,
// setInitialFormat). The teacher repo has no equivalent: its mfm/pll
// packages decode one fixed layout rather than assembling a disk of
// independently-detected tracks, so this package follows the historical C
// source directly, bundling the process-wide globals (curFormat, trackPtr,
// the sector tracker's prevSlot/curSpacing) into an explicit *Context per
// the "explicit context, no ambient globals" design note (§9).
package decode

import "github.com/mogden/flux2imd/format"

// Sector status flags, grounded on sectorManager.h's SS_* enum.
const (
	IDAMGood = 1
	DataGood = 2
	Good     = IDAMGood | DataGood
	Fixed    = 4
)

// Track status flags, grounded on trackManager.h's TS_* enum.
const (
	FixedID = 1
	BadID   = 2
	Cyl     = 4
	MCyl    = 8
	Side    = 16
	MSide   = 32
	TooMany = 64
)

// MaxSector and PosJitter are sectorManager.h's MAXSECTOR/POSJITTER,
// carried over as exact constants.
const (
	MaxSector   = 52
	PosJitter   = 40
	MaxCylinder = 84
)

// IDAM is sectorManager.h's idam_t: the decoded sector header fields.
type IDAM struct {
	Cylinder byte
	Side     byte
	SectorID byte
	SSize    byte
}

// SectorCopy is one raw read of a sector body, owned exclusively by its
// Sector. Each element is a codeword whose low byte is the decoded data
// byte and whose format.Suspect bit flags a clock-bit anomaly observed
// while decoding it (sectorManager.h's sectorData_t, minus the manual
// length-prefixed allocation - a Go slice already carries its length).
type SectorCopy struct {
	Data []uint16
}

// Sector is one slot's accumulated state across every revolution/retrain
// attempt: the best-known IDAM plus every raw copy read so far (good
// copies displace all prior bad ones; sectorManager.c's addSectorData).
type Sector struct {
	Status int
	IDAM   IDAM
	Copies []SectorCopy
}

// Track is one (cylinder, head) track's assembled state: its slot-indexed
// sector array plus the bookkeeping trackManager.c's track_t carries about
// sector-id disagreements and TOOMANY detection.
type Track struct {
	Status                               int
	Cylinder, Side                       int
	AltCylinder, AltSide                 int
	Fmt                                  format.Info
	CntGoodIdam, CntGoodData, CntAnyData int
	SlotToSector                         []byte // 0xff = unknown, sized to Fmt.SectorsPerTrack
	Sectors                              []Sector
}

// Disk is the 2D cylinder x head array of owning Track pointers, plus the
// visited-track log, grounded on trackManager.c's disk[MAXCYLINDER][2] /
// trackLog globals.
type Disk struct {
	Tracks      [MaxCylinder][2]*Track
	TrackLog    [MaxCylinder][2]bool
	MaxCylinder int
	MaxHead     int
}

// NewDisk returns an empty disk with no tracks visited yet.
func NewDisk() *Disk {
	return &Disk{MaxCylinder: -1, MaxHead: -1}
}

// LogCylHead records that (cylinder, head) was visited, regardless of
// whether decoding produced a usable track, and extends MaxCylinder/MaxHead.
// Grounded on trackManager.c's logCylHead.
func (d *Disk) LogCylHead(cylinder, head int) {
	if cylinder > d.MaxCylinder {
		d.MaxCylinder = cylinder
	}
	if head > d.MaxHead {
		d.MaxHead = head
	}
	if cylinder < MaxCylinder && head < 2 {
		d.TrackLog[cylinder][head] = true
	}
}

// HasTrack reports whether (cylinder, head) was visited during this run.
func (d *Disk) HasTrack(cylinder, head int) bool {
	return cylinder >= 0 && cylinder < MaxCylinder && head >= 0 && head < 2 && d.TrackLog[cylinder][head]
}

// GetTrack returns the owning track pointer for (cylinder, head), or nil.
func (d *Disk) GetTrack(cylinder, head int) *Track {
	if cylinder < 0 || cylinder >= MaxCylinder || head < 0 || head > 1 {
		return nil
	}
	return d.Tracks[cylinder][head]
}

// SetTrack installs t as the owning track for (cylinder, head), replacing
// (and thereby releasing, since Go's GC reclaims the old value once
// unreferenced) anything already there.
func (d *Disk) SetTrack(cylinder, head int, t *Track) {
	if cylinder >= 0 && cylinder < MaxCylinder && head >= 0 && head <= 1 {
		d.Tracks[cylinder][head] = t
	}
}
