package format

// Info is one row of the format table, grounded on formats.h's
// formatInfo_t and formats.c's formatInfo[] array. The sector size is
// stored as the original's sSize code; SectorBytes() expands it to
// 128<<SSize bytes, and some comparisons (O_SIZE regroup) key off the raw
// code directly.
type Info struct {
	Name            string
	SSize           int // sector size code: actual size is 128<<SSize bytes
	FirstSectorID   int
	SectorsPerTrack int
	Encoding        Encoding
	Options         Options
	CRC             CRCFunc
	Patterns        []Pattern
	CRCInit         uint16
	FirstIDAM       int // nominal byte offset of the first IDAM from index
	FirstData       int // nominal byte offset of the first DATAAM from index
	Spacing         int // nominal inter-sector byte spacing
	NominalCellSize int64
	ProfileOrder    []int
	Description     string

	// HiddenTrial marks an internal probe-only entry (the original's
	// 0x80-prefixed name trick) never shown to the user and never
	// selected as a final format.
	HiddenTrial bool
}

// SectorBytes returns the sector payload size in bytes.
func (i Info) SectorBytes() int { return 128 << uint(i.SSize) }

// initial probe patterns, transcribed verbatim from formats.c.
var dd5Patterns = []Pattern{
	{0xffffffff, 0x88888888, Gap},
	{0xffffffff, 0x55555555, Sync},
	{0xffffffff, 0x92549254, IBMGap},
	{0xffffffff, 0x52245552, IndexAM},
	{0xffffffff, 0x44895554, IDAM},
	{0xffffffff, 0x44895545, DataAM},
}

var dd8Patterns = []Pattern{
	{0xffffffff, 0x88888888, Gap},
	{0xffffffff, 0x55555555, Sync},
	{0xffffffff, 0x92549254, IBMGap},
	{0xffffffff, 0x52245552, IndexAM},
	{0xffffffff, 0x44895554, IDAM},
	{0xffffffff, 0x44895545, DataAM},
	{0xffffffff, 0x4489554a, DeletedAM},
	{0xffffffff, 0x55552a52, M2FMIndexAM},
	{0xffffffff, 0x55552a54, M2FMIDAM},
	{0xffffffff, 0x55552a44, HPDataAM},
	{0xffffffff, 0x55552a45, M2FMDataAM},
	{0xffffffff, 0x55552a48, M2FMDeletedAM},
	{0xffffffff, 0x55552a55, HPDeletedAM},
	{0xffffffff, 0x11112244, TIIDAM},
	{0xffffffff, 0x11112245, TIDataAM},
}

var sdPatterns = []Pattern{
	{0xffffffff, 0xffffffff, Gap},
	{0xffffffff, 0xaaaaaaaa, Sync},
	{0xffffffff, 0xaaaaf77a, IndexAM},
	{0xffffffff, 0xaaaaf57e, IDAM},
	{0xffffffff, 0xaaaaf56f, DataAM},
	{0xffffffff, 0xaaaaf56a, DeletedAM},
}

var sd5HPatterns = []Pattern{
	{0xffffffffffffffff, 0xaaaaaaaaaaaaaaaa, Gap},
	{0xffffffffffff, 0xaaaaaaaaffef, NSISector},
}

var nsi5SPatterns = []Pattern{
	{0xffffffffffffffff, 0xaaaaaaaaaaaaaaaa, Gap},
	{0xffffffffffff, 0xaaaaaaaaffef, NSISector},
}

var dd5HPatterns = []Pattern{
	{0xffffffffffffffff, 0xaaaaaaaaaaaaaaaa, Gap},
	{0xffffffffffffffff, 0xaaaaaaaa55455545, NSISector},
	{0xffffffffffff, 0xaaaaaaaa5555, MTechSector},
}

var sd8HPatterns = []Pattern{
	{0xffffffff, 0, LSISector},
	{0xffffffffffff, 0, ZDSSector},
}

var lsiPatterns = []Pattern{
	{0xffffffff, 0, LSISector},
}

var ddMFMPatterns = []Pattern{
	{0xffffffff, 0x55555555, Sync},
	{0xffffffff, 0x92549254, Gap},
	{0xffffffff, 0x52245552, IndexAM},
	{0xffffffff, 0x44895554, IDAM},
	{0xffffffff, 0x44895545, DataAM},
}

var ddM2FMPatterns = []Pattern{
	{0xffffffff, 0x88888888, Gap},
	{0xffffffff, 0x55555555, Sync},
	{0xffffffff, 0x55552a52, M2FMIndexAM},
	{0xffffffff, 0x55552a54, M2FMIDAM},
	{0xffffffff, 0x55552a45, M2FMDataAM},
	{0xffffffff, 0x55552a48, M2FMDeletedAM},
}

var mtech5Patterns = []Pattern{
	{0xffffffffc0007fff, 0x0, MTechSector},
	{0xffffffffffffffff, 0xaaaaaaaaaaaaaaaa, Gap},
}

var ddTIPatterns = []Pattern{
	{0xffffffff, 0x11112244, TIIDAM},
	{0xffffffff, 0x11112245, TIDataAM},
	{0xffffffff, 0x11111111, Sync},
}

var nsi5DPatterns = []Pattern{
	{0xffffffffffffffff, 0xaaaaaaaa55455545, NSISector},
	{0xffffffffffff, 0xaaaaaaaaaaaa, Gap},
}

var ddHPPatterns = []Pattern{
	{0xffffffff, 0x88888888, Gap},
	{0xffffffff, 0x55555555, Sync},
	{0xffffffff, 0x55552a54, HPIDAM},
	{0xffffffff, 0x55552a44, HPDataAM},
	{0xffffffff, 0x55552a55, HPDeletedAM},
}

var sdFMPatterns = []Pattern{
	{0xffffffff, 0xffffffff, Gap},
	{0xffffffff, 0xaaaaaaaa, Sync},
	{0xffffffff, 0xaaaaf77a, IndexAM},
	{0xffffffff, 0xaaaaf57e, IDAM},
	{0xffffffff, 0xaaaaf56f, DataAM},
	{0xffffffff, 0xaaaaf56a, DeletedAM},
}

func profileOrder01234() []int { return ParseProfileOrder("01234") }
func profileOrder34012() []int { return ParseProfileOrder("34012") }

// Table is formatInfo[] from formats.c: grouped by probe format (the first
// entry of each group), followed by the concrete formats sharing its
// encoding. See formats.c's header comment for the group-ordering
// convention this preserves: smallest sector size first, highest spt
// first within a size, trial entries (O_SIZE/O_SPC) duplicating the
// group's head.
var Table = []Info{
	{Name: "SD5", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: FM5, CRC: CRCStd, Patterns: sdPatterns, CRCInit: 0xffff, FirstIDAM: 77, FirstData: 99, Spacing: 188, NominalCellSize: 4000, ProfileOrder: profileOrder01234()},
	{Name: "FM5", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: FM5, Options: OptAutoSpace, CRC: CRCStd, Patterns: sdFMPatterns, CRCInit: 0xffff, FirstIDAM: 79, FirstData: 103, Spacing: 191, NominalCellSize: 4000, ProfileOrder: profileOrder01234(), Description: `5 1/4" SD`},
	{Name: "FM5-16x128", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: FM5, CRC: CRCStd, Patterns: sdFMPatterns, CRCInit: 0xffff, FirstIDAM: 77, FirstData: 101, Spacing: 187, NominalCellSize: 4000, ProfileOrder: profileOrder01234(), Description: `5 1/4" SD 16 x 128 sectors`},
	{Name: "FM5-15x128", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 15, Encoding: FM5, CRC: CRCStd, Patterns: sdFMPatterns, CRCInit: 0xffff, FirstIDAM: 82, FirstData: 106, Spacing: 196, NominalCellSize: 4000, ProfileOrder: profileOrder01234(), Description: `5 1/4" SD 15 x 128 sectors`},

	{Name: "SD8", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 26, Encoding: FM8, CRC: CRCStd, Patterns: sdPatterns, CRCInit: 0xffff, FirstIDAM: 90, FirstData: 115, Spacing: 194, NominalCellSize: 2000, ProfileOrder: profileOrder01234()},
	{Name: "FM8-26x128", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 26, Encoding: FM8, CRC: CRCStd, Patterns: sdFMPatterns, CRCInit: 0xffff, FirstIDAM: 82, FirstData: 106, Spacing: 191, NominalCellSize: 2000, ProfileOrder: profileOrder01234(), Description: `8" SD 26 x 128 sectors`},

	{Name: "SD5H", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: FM5H, CRC: CRCStd, Patterns: sd5HPatterns, CRCInit: 0xffff, FirstIDAM: 77, FirstData: 99, Spacing: 188, NominalCellSize: 4000, ProfileOrder: profileOrder34012()},
	{Name: "NSI-SD", SSize: 1, FirstSectorID: 1, SectorsPerTrack: 10, Encoding: FM5H, Options: OptNSI, CRC: CRCNSI, Patterns: nsi5SPatterns, CRCInit: 0xffff, NominalCellSize: 4000, ProfileOrder: profileOrder34012(), Description: `5 1/4" SD NSI 10 x 256 hard sectors`},

	{Name: "SD8H", SSize: 0, SectorsPerTrack: 32, Encoding: FM8H, CRC: CRCZDS, Patterns: sd8HPatterns, NominalCellSize: 2000, ProfileOrder: profileOrder34012(), Description: `8" SD hard sectors`},
	{Name: "ZDS", SSize: 0, SectorsPerTrack: 32, Encoding: FM8H, Options: OptZDS, CRC: CRCZDS, Patterns: sd8HPatterns[1:], NominalCellSize: 2000, ProfileOrder: profileOrder34012(), Description: `ZDS 8" SD 32 x 128 sectors`},
	{Name: "FM8H-LSI", SSize: 0, SectorsPerTrack: 32, Encoding: FM8H, Options: OptLSI, CRC: CRCLSI, Patterns: sd8HPatterns, NominalCellSize: 2000, ProfileOrder: profileOrder34012()},
	{Name: "LSI", SSize: 0, SectorsPerTrack: 32, Encoding: FM8H, Options: OptLSI, CRC: CRCLSI, Patterns: lsiPatterns, NominalCellSize: 2000, ProfileOrder: profileOrder34012(), Description: `LSI 8" SD 32 x 128 sectors`},

	{Name: "DD5", SSize: 1, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: MFM5, CRC: CRCStd, Patterns: dd5Patterns, CRCInit: 0xcdb4, FirstIDAM: 155, FirstData: 200, Spacing: 368, NominalCellSize: 2000, ProfileOrder: profileOrder01234()},
	{Name: "MFM5", SSize: 1, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: MFM5, Options: OptAutoSize, CRC: CRCStd, Patterns: ddMFMPatterns, CRCInit: 0xcdb4, FirstIDAM: 163, FirstData: 207, Spacing: 378, NominalCellSize: 2000, ProfileOrder: profileOrder01234(), Description: `5 1/4" DD`},
	{Name: "MFM5-16x256", SSize: 1, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: MFM5, CRC: CRCStd, Patterns: ddMFMPatterns, CRCInit: 0xcdb4, FirstIDAM: 160, FirstData: 204, Spacing: 378, NominalCellSize: 2000, ProfileOrder: profileOrder01234(), Description: `5 1/4" DD 16 x 256 sectors`},
	{Name: "MFM5-10x512", SSize: 2, FirstSectorID: 1, SectorsPerTrack: 10, Encoding: MFM5, Options: OptAutoSpace, CRC: CRCStd, Patterns: ddMFMPatterns, CRCInit: 0xcdb4, FirstIDAM: 66, FirstData: 72, Spacing: 593, NominalCellSize: 2000, ProfileOrder: profileOrder01234(), Description: `5 1/4" DD 10 x 512 sectors`},
	{Name: "MFM5-8x512", SSize: 2, FirstSectorID: 1, SectorsPerTrack: 8, Encoding: MFM5, CRC: CRCStd, Patterns: ddMFMPatterns, CRCInit: 0xcdb4, FirstIDAM: 166, FirstData: 211, Spacing: 689, NominalCellSize: 2000, ProfileOrder: profileOrder01234(), Description: `5 1/4" DD 8 x 512 sectors`},

	{Name: "DD8", SSize: 0, SectorsPerTrack: 0, Encoding: MFM8, CRC: CRCStd, Patterns: dd8Patterns, NominalCellSize: 1000, ProfileOrder: profileOrder01234(), Description: `8" DD MFM & M2FM`},
	{Name: "MFM8-52x128", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 52, Encoding: MFM8, Options: OptAutoSize, CRC: CRCStd, Patterns: dd8Patterns, CRCInit: 0xcdb4, FirstIDAM: 138, FirstData: 182, Spacing: 195, NominalCellSize: 1000, ProfileOrder: profileOrder01234(), Description: `8" DD 52 x 128 sectors`},
	{Name: "MFM8-26x256", SSize: 1, FirstSectorID: 1, SectorsPerTrack: 26, Encoding: MFM8, CRC: CRCStd, Patterns: dd8Patterns, CRCInit: 0xcdb4, FirstIDAM: 138, FirstData: 182, Spacing: 368, NominalCellSize: 1000, ProfileOrder: profileOrder01234(), Description: `8" DD 26 x 256 sectors`},
	{Name: "M2FM8-INTEL", SSize: 0, FirstSectorID: 1, SectorsPerTrack: 52, Encoding: M2FM8, CRC: CRCStd, Patterns: ddM2FMPatterns, FirstIDAM: 75, FirstData: 111, Spacing: 195, NominalCellSize: 1000, ProfileOrder: profileOrder01234(), Description: `8" Intel M2FM DD 52 x 128 sectors`},
	{Name: "M2FM8-HP", SSize: 1, SectorsPerTrack: 30, Encoding: M2FM8, Options: OptHP, CRC: CRCRev, Patterns: ddHPPatterns, CRCInit: 0xffff, FirstIDAM: 92, FirstData: 123, Spacing: 332, NominalCellSize: 1000, ProfileOrder: profileOrder01234(), Description: `8" HP DD 30 x 256 sectors`},
	{Name: "TI", SSize: 1, SectorsPerTrack: 26, Encoding: MFM8, Options: OptTI, CRC: CRCStd, Patterns: ddTIPatterns, CRCInit: 0xffff, FirstIDAM: 131, FirstData: 169, Spacing: 392, NominalCellSize: 1000, ProfileOrder: profileOrder34012(), Description: `8" TI 26 x 288 sectors`},

	{Name: "DD5H", SSize: 1, SectorsPerTrack: 16, Encoding: MFM5H, CRC: CRCStd, Patterns: dd5HPatterns, CRCInit: 0xcdb4, FirstIDAM: 155, FirstData: 200, Spacing: 368, NominalCellSize: 2000, ProfileOrder: profileOrder01234(), Description: `5 1/4" DD hard sectors (probe only)`},
	{Name: "MTECH", SSize: 1, SectorsPerTrack: 16, Encoding: MFM5H, Options: OptMTech, CRC: CRC8, Patterns: mtech5Patterns, CRCInit: 0xffff, NominalCellSize: 2000, ProfileOrder: profileOrder34012(), Description: `Mtech 5 1/4" DD 16 x 256 hard sectors`},
	{Name: "NSI-DD", SSize: 2, FirstSectorID: 1, SectorsPerTrack: 10, Encoding: MFM5H, Options: OptNSI, CRC: CRCNSI, Patterns: nsi5DPatterns, CRCInit: 0xffff, NominalCellSize: 2000, ProfileOrder: profileOrder34012(), Description: `NSI 5 1/4" DD 10 x 512 hard sectors`},

	{Name: "FM5-probe", HiddenTrial: true, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: FM5, Patterns: sdPatterns, NominalCellSize: 4000, ProfileOrder: profileOrder01234()},
	{Name: "MFM5-probe", HiddenTrial: true, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: MFM5, Patterns: dd8Patterns, NominalCellSize: 2000, ProfileOrder: profileOrder01234()},
	{Name: "FM8-probe", HiddenTrial: true, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: FM8, Patterns: sdPatterns, NominalCellSize: 2000, ProfileOrder: profileOrder01234()},
	{Name: "MFM8-probe", HiddenTrial: true, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: MFM8, Patterns: dd8Patterns, NominalCellSize: 1000, ProfileOrder: profileOrder01234()},
	{Name: "M2FM8-probe", HiddenTrial: true, FirstSectorID: 1, SectorsPerTrack: 16, Encoding: M2FM8, Patterns: dd8Patterns, NominalCellSize: 1000, ProfileOrder: profileOrder01234()},
}

// ByName looks up a format by its table name, case-sensitively (the
// original used a case-insensitive strcmp; callers are expected to fold
// case before calling, matching the teacher's own config lookups which
// normalise command-line input before matching).
func ByName(name string) (Info, bool) {
	for _, f := range Table {
		if f.Name == name {
			return f, true
		}
	}
	return Info{}, false
}

// PrecannedFormats is precannedFormats[][2] from formats.c: named
// shorthand for a comma-separated per-cylinder/head format list. No other
// package in this module reads it.
var PrecannedFormats = map[string]string{
	"PDS": "[0/0]FM5,MFM5-16x256",
}
