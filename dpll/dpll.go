// Package dpll implements the digital phase-locked loop described by U.S.
// Patent 4,808,884, which recovers a cell clock from a raw flux-transition
// stream and emits the half-bit stream later consumed by the pattern
// matcher and sector decoder (component C2).
//
// Grounded on original_source/flux2imd/dpll.c. The original keeps its
// state (pattern register, ctime/etime, adapt configuration) in
// process-wide globals shared with the flux iterator; this port bundles
// that state into a DPLL value and takes the flux source as an explicit
// argument to NextBit, per the "explicit context" design note. The
// per-bit adaptation algorithm (slot computation, phaseAdjust table,
// three-consecutive-same-direction trigger, INIT/FAST/MEDIUM/SLOW staged
// parameter selection) is carried over with identical arithmetic.
package dpll

// Stage is the adaptation stage a DPLL is currently in. A retrain always
// starts at StageInit and narrows monotonically; StageSlow is permanent
// once reached.
type Stage int

const (
	StageInit Stage = iota
	StageFast
	StageMedium
	StageSlow
)

// Profile is one (divisor, count, tolerance%) tuning triple for each of the
// three post-init stages, grounded on dpll.c's adapt_t / adaptConfig_*
// tables.
type Profile struct {
	FastDivisor     int
	FastCount       uint32
	FastTolerance   float64
	MediumDivisor   int
	MediumCount     uint32
	MediumTolerance float64
	SlowDivisor     int
	SlowTolerance   float64
}

// phaseAdjust[cstate][slot] is the constant nudge-percentage table from the
// patent, reproduced exactly from dpll.c. Row 0 applies on a bit where a
// frequency correction just fired or the phase-change counter has reached
// two; row 1 is the normal in-lock row.
var phaseAdjust = [2][16]int{
	{120, 130, 135, 140, 145, 150, 155, 160, 160, 165, 170, 175, 180, 185, 190, 200},
	{130, 140, 145, 150, 155, 158, 160, 160, 160, 160, 162, 165, 170, 175, 180, 190},
}

// Source is the flux iterator the DPLL consumes. fluxstore.Flux satisfies
// this directly. GetTs returns the cumulative ns position of the next flux
// transition, or EODATA when exhausted.
type Source interface {
	GetTs() int32
}

// EODATA mirrors fluxstore.EODATA without an import, since the two
// packages deliberately share no dependency beyond this interface.
const EODATA = -1

// DPLL is one phase-locked loop instance, owned exclusively by the track
// currently being decoded.
type DPLL struct {
	nominalCellSize int64
	profiles        []Profile
	profileIdx      int

	cellSize  int64
	cellDelta int64
	minCell   int64
	maxCell   int64

	ctime, etime int64

	up                          bool
	fCnt, aifCnt, adfCnt, pcCnt int

	stage       Stage
	adaptCnt    uint32
	adaptBitCnt uint32

	pattern   uint64
	bits65_66 uint16

	bitCnt uint

	primed bool
}

// New creates a DPLL for an encoding whose nominal (un-adapted) cell width
// is nominalCellSize (ns), with the given ordered list of adaptation
// profiles (selected from by index via Retrain).
func New(nominalCellSize int64, profiles []Profile) *DPLL {
	return &DPLL{nominalCellSize: nominalCellSize, profiles: profiles}
}

// Retrain reinitialises the loop using the given profile index and the
// measured rotational speed rpm (compared against the 300/360 nominal
// speed to scale the initial cell-width estimate), priming it with the
// first flux sample from src. It returns false if profile is beyond the
// end of the profile list, signalling the caller must stop escalating.
func (d *DPLL) Retrain(profile int, rpm float64, src Source) bool {
	if profile < 0 || profile >= len(d.profiles) {
		d.profileIdx = 0
		return false
	}
	d.profileIdx = profile

	d.pattern, d.bits65_66 = 0, 0
	d.fCnt, d.aifCnt, d.adfCnt, d.pcCnt = 0, 0, 0, 0
	d.up = false
	d.bitCnt = 0

	flux := src.GetTs()
	nominal := 300.0
	if rpm >= 320 {
		nominal = 360.0
	}
	if rpm <= 0 {
		rpm = nominal
	}
	d.cellSize = int64(float64(d.nominalCellSize) * nominal / rpm)

	if flux > 0 {
		d.ctime = int64(flux)
	} else {
		d.ctime = 0
	}
	d.etime = d.ctime + d.cellSize/2 // assume priming sample lands mid-cell

	d.stage = StageInit
	d.adaptBitCnt = 0
	d.adapt() // install the FAST-stage parameters and advance to StageFast
	d.primed = true
	return true
}

func (d *DPLL) profile() Profile { return d.profiles[d.profileIdx] }

// adapt installs the per-bit tuning parameters for the stage about to
// begin and advances the stage counter, mirroring dpll.c's adaptDpll: the
// switch arm named for the *current* stage selects the parameters for the
// stage being entered (INIT installs the fast-stage numbers, FAST installs
// medium, MEDIUM installs slow); StageSlow is permanent and adapt becomes
// a no-op once reached.
func (d *DPLL) adapt() {
	p := d.profile()
	var divisor int
	var toleranceLimit int64

	switch d.stage {
	case StageInit:
		d.adaptCnt = p.FastCount
		divisor = p.FastDivisor
		toleranceLimit = int64(float64(d.cellSize) * p.FastTolerance / 100)
	case StageFast:
		d.adaptCnt = p.MediumCount
		divisor = p.MediumDivisor
		toleranceLimit = int64(float64(d.cellSize) * p.MediumTolerance / 100)
	case StageMedium:
		divisor = p.SlowDivisor
		toleranceLimit = int64(float64(d.cellSize) * p.SlowTolerance / 100)
	default:
		return
	}
	d.stage++
	d.adaptBitCnt = 0
	d.cellDelta = d.cellSize / int64(divisor)
	d.maxCell = d.cellSize + toleranceLimit
	d.minCell = d.cellSize - toleranceLimit
}

// NextBit advances the loop by one cell, consuming flux samples from src as
// needed, and returns the half-bit recovered for that cell: 1 if a flux
// transition landed within the cell window, 0 otherwise (a "missing
// transition" cell, i.e. a long gap). ok is false once src is exhausted.
// Retrain must be called before the first NextBit.
func (d *DPLL) NextBit(src Source) (bit int, ok bool) {
	d.bits65_66 = uint16(((uint64(d.bits65_66) << 1) + (d.pattern >> 63)) & 3)
	d.pattern <<= 1

	for d.ctime < d.etime {
		ts := src.GetTs()
		if ts == EODATA {
			return 0, false
		}
		d.ctime = int64(ts)
	}

	slot := int(16 * (d.ctime - d.etime) / d.cellSize)
	if slot >= 16 {
		d.etime += d.cellSize
		d.bitCnt++
		return 0, true
	}

	cstate := 1
	if slot < 7 || slot > 8 {
		if (slot <= 6 && !d.up) || (slot >= 9 && d.up) {
			d.up = !d.up
			d.pcCnt, d.fCnt = 0, 0
		}
		d.fCnt++
		trigger := d.fCnt >= 3
		if slot < 3 {
			d.aifCnt++
			trigger = trigger || d.aifCnt >= 3
		}
		if slot > 12 {
			d.adfCnt++
			trigger = trigger || d.adfCnt >= 3
		}
		if trigger {
			if d.up {
				d.cellSize -= d.cellDelta
				if d.cellSize < d.minCell {
					d.cellSize = d.minCell
				}
			} else {
				d.cellSize += d.cellDelta
				if d.cellSize > d.maxCell {
					d.cellSize = d.maxCell
				}
			}
			cstate = 0
			d.fCnt, d.pcCnt, d.aifCnt, d.adfCnt = 0, 0, 0, 0
		} else {
			d.pcCnt++
			if d.pcCnt >= 2 {
				cstate = 0
				d.pcCnt = 0
			}
		}
	}

	d.etime += int64(phaseAdjust[cstate][slot]) * d.cellSize / 160

	d.adaptBitCnt++
	if d.adaptBitCnt == d.adaptCnt {
		d.adapt()
	}

	d.pattern |= 1
	d.bitCnt++
	return 1, true
}

// Pattern returns the current 64-bit rolling pattern register.
func (d *DPLL) Pattern() uint64 { return d.pattern }

// Bits65_66 returns the two overflow bits shifted out of the 64-bit
// register, used by patterns whose match needs 66 bits of history.
func (d *DPLL) Bits65_66() uint16 { return d.bits65_66 }

// BitCount supports the diagnostic bit-position logging the original
// emits from DBGLOG(D_PATTERN, ...), and the byte-limit bookkeeping
// matchPattern needs (byteLimit*16 bits, per §4.3).
func (d *DPLL) BitCount() uint { return d.bitCnt }

// CellWidth returns the DPLL's current adapted cell-width estimate in ns.
func (d *DPLL) CellWidth() int64 { return d.cellSize }

// Stage reports the current adaptation stage, useful for diagnostics.
func (d *DPLL) Stage() Stage { return d.stage }
