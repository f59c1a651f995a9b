// Package fluxstore is the normalised in-memory flux model (component C1).
//
// A container-specific reader (KryoFlux, SCP, ...) turns its on-disk bytes
// into a single Flux value: a monotonically increasing array of
// nanosecond-resolution flux-transition timestamps plus an index table
// marking revolution or hard-sector boundaries. Everything downstream of
// ingestion — the DPLL, the pattern matcher, the sector decoder — consumes
// only this normalised model, never a container's native byte layout.
package fluxstore

import "fmt"

// ItemType tags an index table entry or a sentinel returned from the
// iterator. Hard-sector slot numbers are represented by HSSTART-slot, so
// any raw itype < HSSTART is actually a hard-sector slot index.
type ItemType int16

const (
	EODATA  ItemType = -1 // end of data
	SODATA  ItemType = -2 // start of data sentinel
	SSSTART ItemType = -3 // start of a soft-sector revolution
	HSSTART ItemType = -4 // subtract the hard-sector slot number from this
)

// Index is one entry of the flux index table: a revolution start, a
// hard-sector boundary, or one of the EODATA/SODATA sentinels.
type Index struct {
	Pos   uint32 // position of the first sample at or after Ts
	Ts    int32  // time of the index in ns from the start of the stream
	IType int16  // EODATA, SSSTART, hard-sector slot number, or HSSTART-relative
}

// OnIndex is invoked when the iterator crosses an index boundary. Returning
// true indicates the callback fully handled the index (e.g. restarted the
// caller's own bookkeeping) and iteration should continue transparently.
type OnIndex func(index uint16) bool

// Flux is the normalised flux store for one track (cylinder, head). It is
// produced once by a container reader and then exclusively owned by that
// track's decode for its lifetime.
type Flux struct {
	ts     []int32 // nanosecond timestamps, strictly increasing (except EODATA sentinel)
	sclk   float64 // sample clock period in ns
	rpm    float64 // nominal rotational speed: 300 or 360
	scaler float64 // ns-per-tick scaler, rescaled whenever actual RPM is learned

	timeNs float64 // running position while samples are being appended
	tsPos  uint32  // index of the next sample to deliver

	onIndex OnIndex

	cyl, head int16
	hsCnt     int16 // hard sector count; 0 for soft-sectored

	index        []Index
	indexPos     int
	nextIndexTs  int32
	nextIndex    int16
	indexHandled bool
}

// New begins a flux store sized for sampleCnt samples and indexCnt index
// table entries (including the trailing EODATA sentinel). hsCnt is the
// hard-sector count, 0 for soft-sectored media.
func New(sampleCnt uint32, indexCnt int, sclk, rpm float64, hsCnt int16) *Flux {
	f := &Flux{
		ts:     make([]int32, 0, sampleCnt),
		sclk:   sclk,
		rpm:    rpm,
		scaler: sclk,
		index:  make([]Index, 0, indexCnt+1),
		cyl:    -1,
		head:   -1,
		hsCnt:  hsCnt,
	}
	f.index = append(f.index, Index{Pos: 0, Ts: 0, IType: int16(SODATA)})
	return f
}

// SetCylHead records the expected cylinder/head for this track, e.g. taken
// from the container's file name or internal metadata. -1 means unknown.
func (f *Flux) SetCylHead(cyl, head int16) {
	f.cyl, f.head = cyl, head
}

func (f *Flux) Cyl() int16  { return f.cyl }
func (f *Flux) Head() int16 { return f.head }

// SetActualRPM rescales the ns-per-tick scaler so a nominal rotation (300 or
// 360 rpm) finishes in the expected time whether the drive actually ran
// fast or slow. Call this once per revolution as soon as the measured
// inter-index time is known.
func (f *Flux) SetActualRPM(actualRPM float64) {
	if actualRPM <= 0 {
		return
	}
	f.scaler = f.sclk * (f.rpm / actualRPM)
}

// AddDelta appends one flux interval, in sample-clock ticks, converting it
// to ns via the current scaler.
func (f *Flux) AddDelta(delta uint32) {
	f.timeNs += float64(delta) * f.scaler
	f.ts = append(f.ts, int32(f.timeNs))
}

// AddIndex records an index event at the current write position: a
// revolution start, hard-sector slot boundary, or sentinel. delta (in
// sample-clock ticks) is added to the running time first, mirroring a real
// index pulse that lands between two flux samples.
func (f *Flux) AddIndex(itype int16, delta uint32) {
	f.timeNs += float64(delta) * f.scaler
	f.index = append(f.index, Index{
		Pos:   uint32(len(f.ts)),
		Ts:    int32(f.timeNs),
		IType: itype,
	})
}

// End finalises ingestion: appends the trailing EODATA sentinel and resets
// the iterator to the head of the stream.
func (f *Flux) End() {
	f.index = append(f.index, Index{Pos: uint32(len(f.ts)), Ts: int32(f.timeNs), IType: int16(EODATA)})
	f.tsPos = 0
	f.indexPos = 0
	if len(f.index) > 1 {
		f.nextIndexTs = f.index[1].Ts
		f.nextIndex = f.index[1].IType
	}
	f.indexHandled = false
}

// SeekIndex positions the iterator at the first sample at or after index k
// and returns that index's itype (or EODATA if k is out of range).
func (f *Flux) SeekIndex(k uint16) int16 {
	if int(k) >= len(f.index) {
		return int16(EODATA)
	}
	idx := f.index[k]
	f.tsPos = idx.Pos
	f.indexPos = int(k)
	if int(k)+1 < len(f.index) {
		f.nextIndexTs = f.index[k+1].Ts
		f.nextIndex = f.index[k+1].IType
	} else {
		f.nextIndex = int16(EODATA)
	}
	f.indexHandled = false
	return idx.IType
}

// GetType returns the itype of index k without moving the iterator.
func (f *Flux) GetType(k uint16) int16 {
	if int(k) >= len(f.index) {
		return int16(EODATA)
	}
	return f.index[k].IType
}

// PeekTs returns the next sample's ns timestamp without consuming it, or
// the EODATA sentinel value if the stream is exhausted.
func (f *Flux) PeekTs() int32 {
	if int(f.tsPos) >= len(f.ts) {
		return int32(EODATA)
	}
	return f.ts[f.tsPos]
}

// GetTs consumes and returns the next sample's ns timestamp. When the
// sample crosses the next index boundary, that index is delivered first as
// a negative sentinel (EODATA/SSSTART/HSSTART-slot) and suppressed on
// subsequent calls until a sample lies past it; an OnIndex callback, if
// set, may intercept the index instead.
func (f *Flux) GetTs() int32 {
	if !f.indexHandled && f.indexPos+1 < len(f.index) && int(f.tsPos) >= int(f.index[f.indexPos+1].Pos) {
		f.indexPos++
		f.indexHandled = true
		itype := f.index[f.indexPos].IType
		if f.indexPos+1 < len(f.index) {
			f.nextIndexTs = f.index[f.indexPos+1].Ts
			f.nextIndex = f.index[f.indexPos+1].IType
		}
		if f.onIndex != nil && f.onIndex(uint16(f.indexPos)) {
			f.indexHandled = false
			return f.GetTs()
		}
		return int32(itype)
	}
	if int(f.tsPos) >= len(f.ts) {
		return int32(EODATA)
	}
	ts := f.ts[f.tsPos]
	f.tsPos++
	f.indexHandled = false
	return ts
}

func (f *Flux) HsCnt() int16         { return f.hsCnt }
func (f *Flux) RPM() float64         { return f.rpm }
func (f *Flux) IndexCount() int      { return len(f.index) }
func (f *Flux) SetOnIndex(fn OnIndex) OnIndex {
	prev := f.onIndex
	f.onIndex = fn
	return prev
}

// CellWidth estimates the nominal bitcell width by building a histogram of
// consecutive sample deltas bucketed in 500ns slots and returning i×500ns
// for the bucket i (i>0) maximising H[i]+H[2i] — the bucket most
// likely to represent one cell width given that a two-cell-wide gap is
// also common in FM/MFM streams.
func (f *Flux) CellWidth() (float64, error) {
	const bucketNs = 500.0
	var hist [128]int
	prev := int32(0)
	for _, ts := range f.ts {
		d := ts - prev
		prev = ts
		if d <= 0 {
			continue
		}
		b := int(float64(d) / bucketNs)
		if b < len(hist) {
			hist[b]++
		}
	}
	best, bestScore := -1, -1
	for i := 1; i < len(hist); i++ {
		score := hist[i]
		if 2*i < len(hist) {
			score += hist[2*i]
		}
		if score > bestScore {
			bestScore, best = score, i
		}
	}
	if bestScore <= 0 {
		return 0, fmt.Errorf("fluxstore: cannot estimate cell width, no samples")
	}
	return float64(best) * bucketNs, nil
}
