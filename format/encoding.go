package format

import "github.com/mogden/flux2imd/dpll"

// Encoding is the raw cell encoding a format is recorded with, grounded on
// formats.h's "enum encodings". E_MFM8 is also used as the trial encoding
// for Intel M2FM detection, matching the original's comment.
type Encoding int

const (
	FM5 Encoding = iota
	FM5H
	FM8
	FM8H
	MFM5
	MFM5H
	MFM8
	MFM8H
	M2FM8
)

var encodingNames = [...]string{
	FM5: "FM5", FM5H: "FM5H", FM8: "FM8", FM8H: "FM8H",
	MFM5: "MFM5", MFM5H: "MFM5H", MFM8: "MFM8", MFM8H: "MFM8H",
	M2FM8: "M2FM8",
}

// String renders the encoding the way formats.c names it in its probe
// diagnostics, used by the "formats" command's listing.
func (e Encoding) String() string {
	if int(e) >= 0 && int(e) < len(encodingNames) {
		return encodingNames[e]
	}
	return "unknown"
}

// Options is the per-format option bitset, grounded on formats.h's "enum
// options". The composite per-vendor flags (ZDS, LSI, HP, MTech, NSI, TI)
// are reproduced with the same numeric values as the original so that
// O_NOIMD/O_REV continue to mean the same thing when tested as a submask.
type Options uint

const (
	OptUserInvert Options = 0x400
	OptNoIMD      Options = 0x200
	OptInvert     Options = 0x100
	OptReverse    Options = 0x80
	OptAutoSize   Options = 0x40
	OptAutoSpace  Options = 0x20
	OptZDS        Options = 1 + OptNoIMD
	OptLSI        Options = OptReverse + 2
	OptHP         Options = OptReverse + 3
	OptMTech      Options = OptNoIMD + 4
	OptNSI        Options = 5
	OptTI         Options = OptNoIMD + 6
)

// Has reports whether the option bit(s) in mask are all set.
func (o Options) Has(mask Options) bool { return o&mask == mask }

// adaptConfig_FM5 through adaptConfig_M2FM8 (dpll.c) — each row is
// {fastDivisor, fastCount, fastTolerance%, mediumDivisor, mediumCount,
// mediumTolerance%, slowDivisor, slowTolerance%}. Transcribed verbatim;
// see DESIGN.md for the grounding note on the non-monotonic state/stage
// naming this preserves.
var (
	profileWideTrain   = dpll.Profile{FastDivisor: 100, FastCount: 128, FastTolerance: 10.0, MediumDivisor: 300, MediumCount: 256, MediumTolerance: 8.0, SlowDivisor: 400, SlowTolerance: 8.0}
	profileNarrowTrain = dpll.Profile{FastDivisor: 100, FastCount: 32, FastTolerance: 10.0, MediumDivisor: 200, MediumCount: 32, MediumTolerance: 4.0, SlowDivisor: 200, SlowTolerance: 2.0}
	profileVeryNarrow  = dpll.Profile{FastDivisor: 100, FastCount: 16, FastTolerance: 8.0, MediumDivisor: 200, MediumCount: 32, MediumTolerance: 4.0, SlowDivisor: 400, SlowTolerance: 0.25}
	profileHSDefaultA  = dpll.Profile{FastDivisor: 100, FastCount: 21, FastTolerance: 8.0, MediumDivisor: 400, MediumCount: 32, MediumTolerance: 4.0, SlowDivisor: 600, SlowTolerance: 0.25}
	profileHSDefaultB  = dpll.Profile{FastDivisor: 200, FastCount: 32, FastTolerance: 6.0, MediumDivisor: 400, MediumCount: 32, MediumTolerance: 2.0, SlowDivisor: 600, SlowTolerance: 0.25}
)

// softSectorProfiles, hardSectorFirstProfiles and m2fmProfiles are the
// three orderings the adaptConfig_* tables in dpll.c are built from:
// soft-sector formats try wide-then-narrowing training windows first and
// the hard-sector defaults last, the *H encodings invert that order since
// there is no pre-sync gap to train against, and M2FM8 repeats the narrow
// rows in place of the hard-sector defaults.
var softSectorProfiles = []dpll.Profile{profileWideTrain, profileNarrowTrain, profileVeryNarrow, profileHSDefaultA, profileHSDefaultB}
var hardSectorFirstProfiles = []dpll.Profile{profileHSDefaultA, profileHSDefaultB, profileWideTrain, profileNarrowTrain, profileVeryNarrow}
var m2fmProfiles = []dpll.Profile{profileWideTrain, profileNarrowTrain, profileVeryNarrow, profileNarrowTrain, profileVeryNarrow}

// EncodingProfiles is dpllConfigs from dpll.c: the adaptation profile list
// used for a retrain, selected by raw encoding.
var EncodingProfiles = map[Encoding][]dpll.Profile{
	FM5:   softSectorProfiles,
	FM5H:  hardSectorFirstProfiles,
	FM8:   softSectorProfiles,
	FM8H:  hardSectorFirstProfiles,
	MFM5:  softSectorProfiles,
	MFM5H: hardSectorFirstProfiles,
	MFM8:  softSectorProfiles,
	MFM8H: hardSectorFirstProfiles,
	M2FM8: m2fmProfiles,
}

// NominalCellSize is dpllConfigs' per-encoding nominalCellSize (ns),
// matching the Info.NominalCellSize of each encoding's probe format.
var NominalCellSize = map[Encoding]int64{
	FM5: 4000, FM5H: 4000,
	FM8: 2000, FM8H: 2000,
	MFM5: 2000, MFM5H: 2000,
	MFM8: 1000, MFM8H: 1000,
	M2FM8: 1000,
}

// ParseProfileOrder turns a digit string such as "01234" or "34012" (the
// original's formatInfo_t.profileOrder convention) into the profile
// indices to try, in escalating order.
func ParseProfileOrder(s string) []int {
	order := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			order = append(order, int(r-'0'))
		}
	}
	return order
}
