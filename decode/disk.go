package decode

import (
	"fmt"

	"github.com/mogden/flux2imd/dpll"
	"github.com/mogden/flux2imd/fluxstore"
	"github.com/mogden/flux2imd/format"
)

// maxRetrainAttempts bounds how many of a format's ProfileOrder entries a
// single track decode will try, mirroring decoders.c's flux2Track, which
// keeps retraining at progressively narrower DPLL profiles until the track
// checks out good or the profile order is exhausted.
const maxRetrainAttempts = 8

// DecodeTrack decodes one (cylinder, head) track's flux into a Track,
// auto-detecting the format unless forced is non-empty. Grounded on
// decoders.c's flux2Track: the hard-sector count recorded on the flux
// determines which of the three track-assembly strategies to use, and
// every soft-sector / 10-count-hard-sector track runs its own format
// probe since disks are not required to use one format throughout.
//
// Grounded on original_source/flux2imd/decoders.c's flux2Track.
func DecodeTrack(flux *fluxstore.Flux, cylinder, head int, forced format.Info, forcedValid bool, log Logger) (*Track, error) {
	hsCnt := int(flux.HsCnt())
	rpm := flux.RPM()

	if hsCnt != 0 && head > 0 {
		return nil, fmt.Errorf("decode: hard-sectored media have a single side, got head %d", head)
	}

	info := forced
	ok := forcedValid
	if !ok {
		switch hsCnt {
		case 16:
			info, ok = format.ByName("MTECH")
		case 32:
			info, ok = format.ByName("SD8H")
		case 10:
			info, ok = probeHardSector10(rpm, flux)
		case 0:
			info, ok = probeSoftSector(rpm, flux)
		default:
			return nil, fmt.Errorf("decode: unsupported hard sector count %d", hsCnt)
		}
	}
	if !ok {
		return nil, fmt.Errorf("decode: could not determine format for cylinder %d head %d", cylinder, head)
	}

	c := NewContext(log)
	c.InitTrack(cylinder, head, info)
	c.hardSectored = hsCnt != 0

	prevOnIndex := flux.SetOnIndex(func(idx uint16) bool {
		if flux.GetType(idx) == int16(fluxstore.SSSTART) {
			c.ResetTracker()
		}
		return true
	})
	defer flux.SetOnIndex(prevOnIndex)

	d := dpll.New(info.NominalCellSize, format.EncodingProfiles[info.Encoding])

	order := info.ProfileOrder
	if len(order) > maxRetrainAttempts {
		order = order[:maxRetrainAttempts]
	}
	for _, profileIdx := range order {
		flux.SeekIndex(0)
		if !d.Retrain(profileIdx, rpm, flux) {
			break
		}
		c.ResetTracker()

		switch hsCnt {
		case 16:
			c.DecodeHardSector16Track(d, flux, cylinder, head, format.Table)
		case 32:
			c.DecodeHardSector32Track(d, flux, cylinder, head, format.Table)
		default:
			c.DecodeSoftSectorTrack(d, flux, format.Table)
		}

		if c.CheckTrack() {
			break
		}
	}

	for i := range c.Track.Sectors {
		CleanUpSuspect(c.Track.Sectors[i].Copies)
	}
	c.FinaliseTrack()

	return c.Track, nil
}

// BuildTrackMap indexes a set of already cyl/head-tagged Flux values (as
// produced by one LoadKryoFlux call per container member, after the
// caller tags each with SetCylHead from its file name) by the
// cylinder*2+head key DecodeDisk expects.
func BuildTrackMap(fluxes []*fluxstore.Flux) map[int]*fluxstore.Flux {
	m := make(map[int]*fluxstore.Flux, len(fluxes))
	for _, f := range fluxes {
		key := int(f.Cyl())*2 + int(f.Head())
		m[key] = f
	}
	return m
}

// DecodeDisk decodes every track recorded in tracks (keyed exactly as
// fluxstore.LoadSCP keys its result: cylinder*2+head) into a Disk,
// continuing past a single track's decode error so a damaged disk still
// yields every track that did decode. Grounded on flux2imd.c's per-track
// driving loop around flux2Track.
func DecodeDisk(tracks map[int]*fluxstore.Flux, forced format.Info, forcedValid bool, log Logger) (*Disk, []error) {
	disk := NewDisk()
	var errs []error
	for key, flux := range tracks {
		cylinder, head := key/2, key%2
		disk.LogCylHead(cylinder, head)
		t, err := DecodeTrack(flux, cylinder, head, forced, forcedValid, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("cylinder %d head %d: %w", cylinder, head, err))
			continue
		}
		disk.SetTrack(cylinder, head, t)
	}
	return disk, errs
}
