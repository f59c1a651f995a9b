package format

import "github.com/mogden/flux2imd/dpll"

// MatchPattern drives the DPLL bit by bit, searching up to byteLimit bytes
// (byteLimit*16 half-bits) of history for one of info's patterns. It
// returns the matched marker kind, or NoMatch if the search limit is
// reached or the flux source is exhausted.
//
// Grounded on bits.c's matchPattern: the first 16 bits are a mandatory
// warm-up (a pattern match needs at least 64 bits of real history, but the
// original only insists on 16 before it starts trying, since most patterns
// run 32 bits and a partial match against leftover register content from
// the previous call is harmless — it simply won't satisfy the mask).
func MatchPattern(d *dpll.DPLL, src dpll.Source, info Info, byteLimit int) MarkerKind {
	searchLimit := byteLimit * 16
	addedBits := 0
	for i := 0; i < searchLimit; i++ {
		if _, ok := d.NextBit(src); !ok {
			return NoMatch
		}
		addedBits++
		if addedBits < 16 {
			continue
		}
		pat := d.Pattern()
		for _, p := range info.Patterns {
			if (pat^p.Match)&p.Mask == 0 {
				return p.Kind
			}
		}
	}
	return NoMatch
}

// GetByte decodes one data byte (8 data bits, each riding two half-bits:
// clock then data) from the DPLL, applying the format's O_REV bit-order
// and flagging Suspect when the clock half-bit pattern is inconsistent
// with the format's encoding. ok is false once the flux source is
// exhausted mid-byte.
//
// Grounded on bits.c's getByte: the per-encoding suspect test inspects the
// two-bit window straddling each data bit's clock half, mirroring the
// original's direct reads of the global pattern register.
func GetByte(d *dpll.DPLL, src dpll.Source, info Info) (val int, ok bool) {
	suspect := false
	for i := 0; i < 8; i++ {
		if _, ok := d.NextBit(src); !ok {
			return 0, false
		}
		bit, ok := d.NextBit(src)
		if !ok {
			return 0, false
		}
		pat := d.Pattern()
		switch info.Encoding {
		case FM5, FM8, FM8H:
			suspect = suspect || pat&2 == 0
		case MFM5, MFM8:
			suspect = suspect || (pat&2 != 0 && pat&5 != 0)
		case M2FM8:
			suspect = suspect || (pat&2 != 0 && pat&0xd != 0)
		}
		if info.Options.Has(OptReverse) {
			val = (val >> 1)
			if bit != 0 {
				val += 0x80
			}
		} else {
			val = (val << 1) + bit
		}
	}
	if suspect {
		val |= Suspect
	}
	return val, true
}
