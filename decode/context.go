package decode

import (
	"fmt"

	"github.com/mogden/flux2imd/format"
)

// Logger is the minimal logging surface decode needs from the C9 log sink,
// kept as a small interface so this package doesn't import logsink
// directly (avoiding a dependency cycle with the CLI's wiring) and so
// tests can supply a no-op implementation.
type Logger interface {
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Always(format string, args ...interface{})
	Debug(mask uint, format string, args ...interface{})
}

// Context bundles the mutable state decoders.c/sectorManager.c/
// trackManager.c kept as process-wide globals (curFormat, trackPtr, the
// tracker's prevSlot/curSpacing/prevIdamPos/prevDataPos) into one
// explicitly-threaded value, per the "explicit context, no ambient
// globals" design note (§9). One Context is created per track decode.
type Context struct {
	Log Logger

	Format format.Info
	Track  *Track

	// tracker state, grounded on sectorManager.c's file-static variables.
	prevSlot               int
	curSpacing             int
	minSpacing, maxSpacing int
	prevIdamPos            int
	prevDataPos            int
	hardSectored           bool
}

// NewContext returns a fresh decode context using log for diagnostics.
func NewContext(log Logger) *Context {
	if log == nil {
		log = nopLogger{}
	}
	return &Context{Log: log}
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Always(string, ...interface{})      {}
func (nopLogger) Debug(uint, string, ...interface{}) {}

// InitTrack starts a fresh Track for (cylinder, head) using fmt as the
// current format, discarding any partially-decoded track already present
// (trackManager.c's initTrack/removeTrack — Go's GC takes the place of the
// original's explicit free).
func (c *Context) InitTrack(cylinder, head int, fmt format.Info) {
	c.Format = fmt
	t := &Track{
		Cylinder:    cylinder,
		Side:        head,
		AltCylinder: cylinder,
		AltSide:     head,
		Fmt:         fmt,
		Sectors:     make([]Sector, fmt.SectorsPerTrack),
	}
	t.SlotToSector = make([]byte, fmt.SectorsPerTrack)
	for i := range t.SlotToSector {
		t.SlotToSector[i] = 0xff
	}
	c.Track = t
}

// UpdateTrackFmt re-points the current track at a newly-selected format,
// used when the matcher discovers the track actually needs a sibling
// format entry (size/spacing auto-detection). Grounded on
// trackManager.c's updateTrackFmt.
func (c *Context) UpdateTrackFmt(fmt format.Info) {
	c.Format = fmt
	if c.Track != nil {
		c.Track.Fmt = fmt
	}
}

// ResetTracker clears the slot-position tracker's "previous" state, called
// at the start of each revolution. Grounded on sectorManager.c's
// resetTracker.
func (c *Context) ResetTracker() {
	c.prevSlot = -1
}

// isBigGap mirrors sectorManager.c's isBigGap: true when the spacing
// tolerance band is wide enough relative to delta that too many sectors
// would appear to be missing, suggesting the slot estimate has drifted.
func isBigGap(delta, minSpacing, maxSpacing int) bool {
	if delta <= 0 || minSpacing <= 0 || maxSpacing <= 0 {
		return false
	}
	return float64(delta)/float64(minSpacing)-float64(delta)/float64(maxSpacing) > 0.75
}

// chkSpacingChange re-selects curFormat for a sibling entry (same encoding
// and sector size) whose nominal spacing is close to newSpacing. Grounded
// on sectorManager.c's chkSpacingChange; tbl is the full format table to
// search (format.Table in production, a fixture table in tests).
func (c *Context) chkSpacingChange(newSpacing int, tbl []format.Info) {
	found := false
	start := false
	for _, p := range tbl {
		if !start {
			if p.Name == c.Format.Name {
				start = true
			}
			continue
		}
		if p.Encoding != c.Format.Encoding || p.SSize != c.Format.SSize {
			break
		}
		delta := p.Spacing - newSpacing
		if delta < 0 {
			delta = -delta
		}
		if delta < 3 {
			c.Log.Debug(0, "Updated format to %s", p.Name)
			c.UpdateTrackFmt(p)
			c.minSpacing = p.Spacing * 97 / 100
			c.maxSpacing = p.Spacing * 103 / 100
			found = true
			break
		}
	}
	if !found {
		c.Log.Debug(0, "could not determine SPT")
	}
}

// chkSizeChange re-selects curFormat for the sibling table entry sharing
// this format's starting group (matched by FirstIDAM) whose SSize equals
// the size just read from a live IDAM, then re-sizes the in-progress
// track to match. Grounded on decoders.c's chkSizeChange.
func (c *Context) chkSizeChange(ssize int, tbl []format.Info) {
	if ssize == c.Format.SSize {
		return
	}
	for _, p := range tbl {
		if p.Encoding == c.Format.Encoding && p.FirstIDAM == c.Format.FirstIDAM && p.SSize == ssize {
			c.Log.Debug(0, "Updated format to %s on sector size change", p.Name)
			c.UpdateTrackFmt(p)
			if c.Track != nil && len(c.Track.Sectors) != p.SectorsPerTrack {
				old := c.Track.Sectors
				oldMap := c.Track.SlotToSector
				c.Track.Sectors = make([]Sector, p.SectorsPerTrack)
				c.Track.SlotToSector = make([]byte, p.SectorsPerTrack)
				for i := range c.Track.SlotToSector {
					c.Track.SlotToSector[i] = 0xff
				}
				n := len(old)
				if n > p.SectorsPerTrack {
					n = p.SectorsPerTrack
				}
				copy(c.Track.Sectors, old[:n])
				copy(c.Track.SlotToSector, oldMap[:n])
			}
			return
		}
	}
}

// slotAt computes the slot number for a marker observed at file-byte
// offset pos, maintaining the spacing estimate and TOOMANY flag as it
// goes. Grounded on sectorManager.c's slotAt. A non-positive pos is a
// direct hard-sector slot index (-pos), matching the original's "pos<=0
// means -pos is the slot" convention.
func (c *Context) slotAt(pos int, isIdam bool, tbl []format.Info) int {
	if pos <= 0 {
		return -pos
	}

	if c.prevSlot < 0 || pos+PosJitter < ifInt(isIdam, c.prevIdamPos, c.prevDataPos) {
		c.curSpacing = c.Format.Spacing
		if c.hardSectored {
			c.minSpacing, c.maxSpacing = c.curSpacing, c.curSpacing
		} else {
			c.minSpacing = c.Format.Spacing * 97 / 100
			c.maxSpacing = c.Format.Spacing * 103 / 100
		}
		if isIdam {
			c.prevIdamPos = pos
			c.prevDataPos = c.prevIdamPos + c.Format.FirstData - c.Format.FirstIDAM
		} else {
			c.prevDataPos = pos
			c.prevIdamPos = c.prevDataPos + c.Format.FirstIDAM - c.Format.FirstData
		}
		anchor := c.Format.FirstIDAM
		if !isIdam {
			anchor = c.Format.FirstData
		}
		if isBigGap(pos-anchor, c.minSpacing, c.maxSpacing) && c.Track.Status&TooMany == 0 {
			c.Log.Warn("Too many missing sectors at start of track, slot calculation may be wrong")
			c.Track.Status |= TooMany
		}
		c.prevSlot = pos / c.curSpacing
	}

	posDelta := pos - ifInt(isIdam, c.prevIdamPos, c.prevDataPos)
	if isBigGap(posDelta, c.minSpacing, c.maxSpacing) && c.Track.Status&TooMany == 0 {
		c.Log.Warn("Too many missing sectors, slot calculation may be wrong")
		c.Track.Status |= TooMany
	}

	slotDelta := (posDelta + PosJitter) / c.curSpacing
	if slotDelta == 0 {
		if !isIdam {
			c.prevDataPos = pos
		}
	} else {
		c.prevSlot += slotDelta
		newSpacing := posDelta / slotDelta
		if (newSpacing < c.minSpacing || newSpacing > c.maxSpacing) && c.Format.Options.Has(format.OptAutoSpace) {
			c.chkSpacingChange(newSpacing, tbl)
		}
		if newSpacing > c.maxSpacing {
			newSpacing = c.maxSpacing
		} else if newSpacing < c.minSpacing {
			newSpacing = c.minSpacing
		}
		c.curSpacing = newSpacing

		if isIdam {
			c.prevDataPos += pos - c.prevIdamPos
			c.prevIdamPos = pos
		} else {
			c.prevIdamPos += pos - c.prevDataPos
			c.prevDataPos = pos
		}
	}

	if c.prevSlot >= c.Format.SectorsPerTrack {
		c.Log.Error("Sector slot calculated as (%d) >= spt (%d) - setting to max", c.prevSlot, c.Format.SectorsPerTrack)
		c.prevSlot = c.Format.SectorsPerTrack - 1
	}
	return c.prevSlot
}

func ifInt(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

// AddIdam records a decoded IDAM at file-byte offset pos, resolving it to a
// slot and merging it into the track's sector/cylinder/side bookkeeping.
// Grounded on sectorManager.c's addIdam.
func (c *Context) AddIdam(pos int, idam IDAM, tbl []format.Info) error {
	if c.Format.Options.Has(format.OptAutoSize) {
		c.chkSizeChange(int(idam.SSize), tbl)
	}
	slot := c.slotAt(pos, true, tbl)
	if int(idam.SectorID) < c.Format.FirstSectorID || int(idam.SectorID)-c.Format.FirstSectorID >= c.Format.SectorsPerTrack {
		return fmt.Errorf("decode: slot %d sector id %d out of range", slot, idam.SectorID)
	}

	p := &c.Track.Sectors[slot]
	if p.Status&IDAMGood != 0 {
		if p.IDAM != idam {
			c.Log.Always("@slot %d idam mismatch prev %02d/%d/%02d (%d) new %02d/%d/%02d (%d) - change ignored",
				slot, p.IDAM.Cylinder, p.IDAM.Side, p.IDAM.SectorID, 128<<p.IDAM.SSize,
				idam.Cylinder, idam.Side, idam.SectorID, 128<<idam.SSize)
		}
		return nil
	}

	if int(idam.Cylinder) != c.Track.AltCylinder {
		if c.Track.Status&Cyl == 0 {
			c.Log.Warn("Expected cylinder %d, read %d", c.Track.AltCylinder, idam.Cylinder)
			c.Track.Status |= Cyl
		} else if c.Track.Status&MCyl == 0 {
			c.Log.Warn("Multiple cylinder ids including %d & %d", c.Track.AltCylinder, idam.Cylinder)
			c.Track.Status |= MCyl
		}
		c.Track.AltCylinder = int(idam.Cylinder)
	}
	if int(idam.Side) != c.Track.AltSide {
		if c.Track.Status&Side == 0 {
			c.Log.Warn("Expected head %d, read %d", c.Track.AltSide, idam.Side)
			c.Track.Status |= Side
		} else if c.Track.Status&MSide == 0 {
			c.Log.Error("Multiple head ids %d & %d", c.Track.AltSide, idam.Side)
			c.Track.Status |= MSide
		}
		c.Track.AltSide = int(idam.Side)
	}
	c.Track.CntGoodIdam++
	p.Status |= IDAMGood
	p.IDAM = idam
	c.Track.SlotToSector[slot] = idam.SectorID
	return nil
}

// AddSectorData records a data-block read at file-byte offset pos.
// Grounded on sectorManager.c's addSectorData: a good read always wins and
// discards prior bad copies; repeated good reads that disagree are logged
// but never overwritten (the first good copy is definitive).
func (c *Context) AddSectorData(pos int, isGood bool, data []uint16, tbl []format.Info) {
	slot := c.slotAt(pos, false, tbl)
	p := &c.Track.Sectors[slot]

	if p.Status&DataGood != 0 {
		if isGood && len(p.Copies) > 0 && !sameLowBytes(p.Copies[0].Data, data) {
			c.Log.Always("@slot %d valid sectors with different data", slot)
		}
		return
	}

	if isGood {
		p.Status |= DataGood
		p.Copies = nil
		c.Track.CntGoodData++
		c.Track.CntAnyData++
	} else if len(p.Copies) == 0 {
		c.Track.CntAnyData++
	}

	cp := SectorCopy{Data: append([]uint16(nil), data...)}
	p.Copies = append([]SectorCopy{cp}, p.Copies...)
}

func sameLowBytes(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i]&0xff != b[i]&0xff {
			return false
		}
	}
	return true
}

// CheckTrack reports whether every sector in the current track has both
// IDAMGood and DataGood set. Grounded on trackManager.c's checkTrack.
func (c *Context) CheckTrack() bool {
	for i := range c.Track.Sectors {
		if c.Track.Sectors[i].Status&Good != Good {
			return false
		}
	}
	return true
}

// buildInterleaveMap fills interleaveMap[slot] = sequential sector index
// for the given interleave stride, grounded on trackManager.c's
// buildInterleaveMap.
func buildInterleaveMap(interleave, spt int) []int {
	m := make([]int, spt)
	for i := range m {
		m[i] = -1
	}
	slot := 0
	for i := 0; i < spt; i++ {
		for m[slot] != -1 {
			slot = (slot + 1) % spt
		}
		m[slot] = i
		slot = (slot + interleave) % spt
	}
	return m
}

// fixSectorMap reconstructs unknown slot->sectorId entries by searching
// interleaves 1..12 for one consistent with every known IDAM. Grounded on
// trackManager.c's fixSectorMap.
func (c *Context) fixSectorMap() {
	t := c.Track
	spt := t.Fmt.SectorsPerTrack
	firstSectorID := t.Fmt.FirstSectorID

	if t.CntGoodIdam == 0 {
		if t.CntAnyData == 0 {
			return
		}
		c.Log.Warn("No sector Ids found, assuming first sector is %d", firstSectorID)
		t.SlotToSector[0] = byte(firstSectorID)
		t.Sectors[0].Status |= Fixed
	} else if t.CntGoodIdam == 1 {
		c.Log.Warn("Only one sector Id found")
	}

	firstUsedSlot := 0
	for firstUsedSlot < spt && t.SlotToSector[firstUsedSlot] == 0xff {
		firstUsedSlot++
	}
	if firstUsedSlot >= spt {
		t.Status |= BadID
		return
	}

	match := false
	var interleaveMap []int
	for interleave := 1; !match && interleave < 13; interleave++ {
		interleaveMap = buildInterleaveMap(interleave, spt)
		offset := ((int(t.SlotToSector[firstUsedSlot])-firstSectorID-interleaveMap[firstUsedSlot])%spt + spt) % spt
		resolved := make([]int, spt)
		for i, v := range interleaveMap {
			resolved[i] = (v+offset)%spt + firstSectorID
		}
		match = true
		for i := firstUsedSlot; match && i < spt; i++ {
			if t.SlotToSector[i] != 0xff && int(t.SlotToSector[i]) != resolved[i] {
				match = false
			}
		}
		if match {
			interleaveMap = resolved
		}
	}
	if match {
		for i := 0; i < spt; i++ {
			if t.SlotToSector[i] == 0xff {
				t.SlotToSector[i] = byte(interleaveMap[i])
				t.Sectors[i].Status |= Fixed
				t.Sectors[i].IDAM.SectorID = byte(interleaveMap[i])
			}
		}
		t.Status |= FixedID
	} else {
		c.Log.Warn("Cannot find suitable interleave. Sector map left unresolved")
		t.Status |= BadID
	}
}

// FinaliseTrack fills in any missing sector ids once the track's revolution
// loop has given up retraining. Grounded on trackManager.c's
// finaliseTrack.
func (c *Context) FinaliseTrack() {
	t := c.Track
	if t.CntAnyData == 0 {
		return
	}
	if t.CntGoodIdam == t.Fmt.SectorsPerTrack {
		return
	}
	c.fixSectorMap()
}

// CleanUpSuspect pairs up every two raw copies of a sector and, for every
// byte position where they agree on the data byte, sets both codewords to
// their AND: the Suspect flag is cleared on both unless both copies carry
// it (agreement with a clean read is evidence the bit is correct despite a
// clock anomaly in the other). Grounded on display.c's
// cleanUpSuspect. Idempotent: running it twice leaves already-cleared bytes
// unchanged since AND with itself is a no-op.
func CleanUpSuspect(copies []SectorCopy) {
	for i := 0; i < len(copies); i++ {
		for j := i + 1; j < len(copies); j++ {
			p, q := copies[i].Data, copies[j].Data
			n := len(p)
			if len(q) < n {
				n = len(q)
			}
			for k := 0; k < n; k++ {
				if (p[k]^q[k])&0xff == 0 {
					v := p[k] & q[k]
					p[k], q[k] = v, v
				}
			}
		}
	}
}
