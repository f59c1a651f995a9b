package decode

import (
	"github.com/mogden/flux2imd/dpll"
	"github.com/mogden/flux2imd/format"
)

// probeLimit is the byte search window probe() uses for each matchPattern
// call, grounded on formats.c's probe (searchLimit of 50 bytes).
const probeLimit = 50

// probeSoftSector drives a throwaway DPLL over src, retrained with profile 0
// of each soft-sector trial format's encoding, classifying what address-mark family
// it locks onto. Grounded on formats.c's setInitialFormat/probe: the
// original walks DD5/DD8 first, then falls back to SD5/SD8, with the
// 5.25"/8" choice driven by rotational speed (below 320 rpm implies a
// 5.25" drive spinning at 300 rpm, 8" drives spin at 360).
func probeSoftSector(rpm float64, src dpll.Source) (format.Info, bool) {
	trialOrder := []string{"MFM5-probe", "MFM8-probe", "FM5-probe", "FM8-probe", "M2FM8-probe"}
	if rpm >= 320 {
		trialOrder = []string{"MFM8-probe", "MFM5-probe", "FM8-probe", "FM5-probe", "M2FM8-probe"}
	}

	var bestKind format.MarkerKind
	var bestTrial format.Info
	found := false

	for _, name := range trialOrder {
		trial, ok := format.ByName(name)
		if !ok {
			continue
		}
		profiles := format.EncodingProfiles[trial.Encoding]
		d := dpll.New(trial.NominalCellSize, profiles)
		if !d.Retrain(0, rpm, src) {
			continue
		}

		seen := make(map[format.MarkerKind]int)
		for tries := 0; tries < 8; tries++ {
			kind := format.MatchPattern(d, src, trial, probeLimit)
			if kind == format.NoMatch {
				break
			}
			seen[kind]++
			if seen[kind] >= 2 {
				bestKind, bestTrial, found = kind, trial, true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return format.Info{}, false
	}
	return resolveConcreteFormat(bestTrial, bestKind)
}

// resolveConcreteFormat maps a trial format plus the marker family it
// locked onto back to one of the table's concrete (non-hidden) entries,
// grounded on formats.c's probe return values ("M2FM8-INTEL", "M2FM8-HP",
// "TI", plain MFM/FM names). Sector-size and spacing auto-detection
// (O_AUTOSIZE/O_AUTOSPACE) is deferred to the first IDAM actually decoded
// by the track loop, matching chkSizeChange/chkSpacingChange being called
// lazily from there rather than up front.
func resolveConcreteFormat(trial format.Info, kind format.MarkerKind) (format.Info, bool) {
	switch trial.Encoding {
	case format.FM5:
		return format.ByName("FM5")
	case format.FM8:
		return format.ByName("FM8-26x128")
	case format.MFM5:
		return format.ByName("MFM5")
	case format.MFM8:
		switch kind {
		case format.TIIDAM, format.TIDataAM:
			return format.ByName("TI")
		case format.M2FMIDAM, format.M2FMDataAM, format.M2FMDeletedAM, format.M2FMIndexAM:
			return format.ByName("M2FM8-INTEL")
		case format.HPIDAM, format.HPDataAM, format.HPDeletedAM:
			return format.ByName("M2FM8-HP")
		default:
			return format.ByName("MFM8-52x128")
		}
	case format.M2FM8:
		switch kind {
		case format.HPIDAM, format.HPDataAM, format.HPDeletedAM:
			return format.ByName("M2FM8-HP")
		default:
			return format.ByName("M2FM8-INTEL")
		}
	}
	return format.Info{}, false
}

// probeHardSector10 distinguishes the two NSI hard-sector formats (10
// sectors/track): NSI-SD on 5.25" FM media, NSI-DD on MFM media. Grounded
// on formats.c's probe, which gates the NSI branch on cntHardSectors()==10.
func probeHardSector10(rpm float64, src dpll.Source) (format.Info, bool) {
	for _, name := range []string{"NSI-DD", "NSI-SD"} {
		trial, ok := format.ByName(name)
		if !ok {
			continue
		}
		d := dpll.New(trial.NominalCellSize, format.EncodingProfiles[trial.Encoding])
		if !d.Retrain(0, rpm, src) {
			continue
		}
		if format.MatchPattern(d, src, trial, probeLimit) != format.NoMatch {
			return trial, true
		}
	}
	return format.Info{}, false
}
