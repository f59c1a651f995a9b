package fluxstore

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// KryoFlux stream byte codes, grounded on the teacher's kryoflux/read.go
// and on original_source/flux2imd/flux.c.
const (
	kfOOB       = 0x0d
	kfFlux3     = 0x0c
	kfNop1      = 0x08
	kfNop2      = 0x09
	kfNop3      = 0x0a
	kfOvl16     = 0x0b
	kfFlux2Hi   = 0x07 // codes 0x00-0x07 introduce a big-nibble FLUX2 sample
)

const (
	oobInvalid    = 0x00
	oobStreamInfo = 0x01
	oobIndex      = 0x02
	oobStreamEnd  = 0x03
	oobKFInfo     = 0x04
	oobEOF        = 0x0d
)

// kfIndexEvent is one OOB Index block: the stream position at which the
// index pulse was seen, the running sample counter, and the running index
// clock counter (used to calibrate RPM between successive pulses).
type kfIndexEvent struct {
	streamPos     uint32
	sampleCounter uint32
	indexCounter  uint32
}

// LoadKryoFlux decodes a complete KryoFlux .raw stream captured for a
// single track into a normalised Flux. It performs the same two logical
// passes as the original flux2imd: pass 1 walks the byte stream counting
// samples and collecting index events (to size the buffer and calibrate
// RPM), pass 2 walks it again converting each delta into ns and committing
// it to the Flux.
func LoadKryoFlux(data []byte) (*Flux, error) {
	sampleClockHz, indexClockHz, hsCnt, err := parseKFInfo(data)
	if err != nil {
		return nil, errors.Wrap(err, "fluxstore: kryoflux")
	}

	sampleCnt, indexEvents, err := kfPass1(data)
	if err != nil {
		return nil, errors.Wrap(err, "fluxstore: kryoflux pass1")
	}
	if len(indexEvents) < 2 {
		return nil, errors.New("fluxstore: kryoflux stream has fewer than two index pulses")
	}

	rpm := calcNominalRPM(indexEvents, indexClockHz)
	sclk := 1e9 / sampleClockHz

	f := New(sampleCnt, len(indexEvents)+1, sclk, rpm, hsCnt)

	if err := kfPass2(data, f, indexEvents, indexClockHz); err != nil {
		return nil, errors.Wrap(err, "fluxstore: kryoflux pass2")
	}
	f.End()
	return f, nil
}

// parseKFInfo scans the OOB blocks for the first KFInfo record and extracts
// sck= (sample clock Hz), ick= (index clock Hz) and hc= (hard sector count).
func parseKFInfo(data []byte) (sck, ick float64, hsCnt int16, err error) {
	sck, ick = 24027428.5714285, 3003428.5714285 // KryoFlux board defaults
	i := 0
	for i < len(data) {
		if data[i] != kfOOB {
			i++
			continue
		}
		if i+4 > len(data) {
			break
		}
		oobType := data[i+1]
		length := int(data[i+2]) | int(data[i+3])<<8
		payloadStart := i + 4
		if payloadStart+length > len(data) {
			break
		}
		if oobType == oobKFInfo {
			info := string(data[payloadStart : payloadStart+length])
			for _, field := range strings.Split(info, ", ") {
				field = strings.TrimSpace(strings.Trim(field, "\x00"))
				kv := strings.SplitN(field, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch kv[0] {
				case "sck":
					if v, e := strconv.ParseFloat(kv[1], 64); e == nil {
						sck = v
					}
				case "ick":
					if v, e := strconv.ParseFloat(kv[1], 64); e == nil {
						ick = v
					}
				case "hc":
					if v, e := strconv.Atoi(kv[1]); e == nil {
						hsCnt = int16(v)
					}
				}
			}
		}
		if oobType == oobEOF {
			break
		}
		i = payloadStart + length
	}
	return sck, ick, hsCnt, nil
}

// kfPass1 walks the stream counting flux samples and recording every Index
// OOB block, without computing any ns timestamps yet.
func kfPass1(data []byte) (sampleCnt uint32, events []kfIndexEvent, err error) {
	i := 0
	for i < len(data) {
		b := data[i]
		switch {
		case b <= kfFlux2Hi:
			i += 2
			sampleCnt++
		case b == kfNop1:
			i++
		case b == kfNop2:
			i += 2
		case b == kfNop3, b == kfOvl16:
			i += 3
		case b == kfFlux3:
			i += 3
			sampleCnt++
		case b == kfOOB:
			if i+4 > len(data) {
				return sampleCnt, events, errors.New("truncated OOB block")
			}
			oobType := data[i+1]
			length := int(data[i+2]) | int(data[i+3])<<8
			payloadStart := i + 4
			if payloadStart+length > len(data) {
				return sampleCnt, events, errors.New("truncated OOB payload")
			}
			if oobType == oobIndex && length >= 12 {
				p := data[payloadStart : payloadStart+length]
				events = append(events, kfIndexEvent{
					streamPos:     le32(p[0:4]),
					sampleCounter: le32(p[4:8]),
					indexCounter:  le32(p[8:12]),
				})
			}
			if oobType == oobEOF {
				return sampleCnt, events, nil
			}
			i = payloadStart + length
		default:
			i++
			sampleCnt++
		}
	}
	return sampleCnt, events, nil
}

// kfPass2 re-walks the stream, this time accumulating deltas and committing
// them (and the index boundaries) to f.
func kfPass2(data []byte, f *Flux, events []kfIndexEvent, indexClockHz float64) error {
	i := 0
	eventIdx := 0
	var pendingOvl uint32

	for i < len(data) {
		b := data[i]
		switch {
		case b <= kfFlux2Hi:
			if i+1 >= len(data) {
				return errors.New("truncated FLUX2 sample")
			}
			delta := (uint32(b) << 8) | uint32(data[i+1])
			f.AddDelta(delta + pendingOvl)
			pendingOvl = 0
			i += 2
		case b == kfNop1:
			i++
		case b == kfNop2:
			i += 2
		case b == kfNop3:
			i += 3
		case b == kfOvl16:
			pendingOvl += 0x10000
			i += 3
		case b == kfFlux3:
			if i+2 >= len(data) {
				return errors.New("truncated FLUX3 sample")
			}
			delta := (uint32(data[i+1]) << 8) | uint32(data[i+2])
			f.AddDelta(delta + pendingOvl)
			pendingOvl = 0
			i += 3
		case b == kfOOB:
			if i+4 > len(data) {
				return errors.New("truncated OOB block")
			}
			oobType := data[i+1]
			length := int(data[i+2]) | int(data[i+3])<<8
			payloadStart := i + 4
			if payloadStart+length > len(data) {
				return errors.New("truncated OOB payload")
			}
			if oobType == oobIndex && eventIdx < len(events) {
				if eventIdx > 0 {
					rpm := 60.0 / (float64(events[eventIdx].indexCounter-events[eventIdx-1].indexCounter) / indexClockHz)
					f.SetActualRPM(rpm)
				}
				f.AddIndex(int16(SSSTART), 0)
				eventIdx++
			}
			if oobType == oobEOF {
				return nil
			}
			i = payloadStart + length
		default:
			f.AddDelta(uint32(b) + pendingOvl)
			pendingOvl = 0
			i++
		}
	}
	return nil
}

// calcNominalRPM averages the measured RPM between consecutive index pulses
// and rounds to the nearest standard speed: 300 if measured < 320, else 360.
func calcNominalRPM(events []kfIndexEvent, indexClockHz float64) float64 {
	if len(events) < 2 {
		return 300
	}
	var sum float64
	n := 0
	for i := 1; i < len(events); i++ {
		dc := events[i].indexCounter - events[i-1].indexCounter
		if dc == 0 {
			continue
		}
		sum += 60.0 / (float64(dc) / indexClockHz)
		n++
	}
	if n == 0 {
		return 300
	}
	measured := sum / float64(n)
	if measured < 320 {
		return 300
	}
	return 360
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
