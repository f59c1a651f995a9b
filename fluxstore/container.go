package fluxstore

import (
	"archive/zip"
	"io"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// ZipMember names a decoded entry extracted from a .zip container: its raw
// bytes plus the (cylinder, head) parsed from its file name.
type ZipMember struct {
	Name        string
	Data        []byte
	Cylinder    int
	Head        int
	HasPosition bool
}

// cylHeadRe matches the "CC.H.raw" filename suffix convention: a two-digit
// cylinder, a single-digit head, before the extension.
var cylHeadRe = regexp.MustCompile(`(\d{2})\.(\d)\.raw$`)

// LoadZip reads every ".raw" entry from a zip container. It is a plain
// byte-provider: no zip-specific flux knowledge lives here, matching the
// original flux2imd.c's loadZipFile, which does nothing but extract bytes
// before handing them to the same .raw loader used for standalone files.
func LoadZip(path string) ([]ZipMember, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "fluxstore: open zip %s", path)
	}
	defer r.Close()

	var members []ZipMember
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if len(f.Name) < 4 || f.Name[len(f.Name)-4:] != ".raw" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "fluxstore: open zip entry %s", f.Name)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "fluxstore: read zip entry %s", f.Name)
		}
		m := ZipMember{Name: f.Name, Data: data}
		if cyl, head, ok := parseCylHead(f.Name); ok {
			m.Cylinder, m.Head, m.HasPosition = cyl, head, true
		}
		members = append(members, m)
	}
	return members, nil
}

// parseCylHead extracts the cylinder/head coordinate from a "...CC.H.raw"
// file name, per §6's external interface convention.
func parseCylHead(name string) (cyl, head int, ok bool) {
	m := cylHeadRe.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	c, err1 := strconv.Atoi(m[1])
	h, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return c, h, true
}
