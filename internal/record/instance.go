package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotPart10 is returned for files without the 128-byte preamble and DICM marker.
var ErrNotPart10 = errors.New("not a DICOM part-10 file")

// Instance is a record ready for network submission: the file-meta fields
// needed to negotiate a presentation context, and the raw data set that
// follows the meta group.
type Instance struct {
	Path              string
	SOPClassUID       string
	SOPInstanceUID    string
	TransferSyntaxUID string
	DataSet           []byte
}

const (
	preambleLen = 128
	metaGroup   = 0x0002
)

// explicit-VR encodings with a 4-byte length field
var longVRs = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OV": true, "OW": true,
	"SQ": true, "SV": true, "UC": true, "UN": true, "UR": true, "UT": true, "UV": true,
}

// ReadInstance loads a part-10 file and splits it at the end of the meta group.
func ReadInstance(path string) (Instance, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Instance{}, err
	}
	inst, err := SplitPart10(b)
	if err != nil {
		return Instance{}, &ParseError{Path: path, Err: err}
	}
	inst.Path = path
	return inst, nil
}

// SplitPart10 parses the explicit-VR little-endian meta group of a part-10 stream.
func SplitPart10(b []byte) (Instance, error) {
	if len(b) < preambleLen+4 || !bytes.Equal(b[preambleLen:preambleLen+4], []byte("DICM")) {
		return Instance{}, ErrNotPart10
	}
	var inst Instance
	off := preambleLen + 4
	for off+8 <= len(b) {
		group := binary.LittleEndian.Uint16(b[off:])
		if group != metaGroup {
			break
		}
		elem := binary.LittleEndian.Uint16(b[off+2:])
		vr := string(b[off+4 : off+6])
		var hdr, n int
		if longVRs[vr] {
			if off+12 > len(b) {
				return Instance{}, fmt.Errorf("truncated meta element (0002,%04X)", elem)
			}
			hdr, n = 12, int(binary.LittleEndian.Uint32(b[off+8:]))
		} else {
			hdr, n = 8, int(binary.LittleEndian.Uint16(b[off+6:]))
		}
		if n < 0 || off+hdr+n > len(b) {
			return Instance{}, fmt.Errorf("meta element (0002,%04X) overruns file", elem)
		}
		val := strings.TrimRight(string(b[off+hdr:off+hdr+n]), " \x00")
		switch elem {
		case 0x0002:
			inst.SOPClassUID = val
		case 0x0003:
			inst.SOPInstanceUID = val
		case 0x0010:
			inst.TransferSyntaxUID = val
		}
		off += hdr + n
	}
	if inst.SOPClassUID == "" || inst.TransferSyntaxUID == "" {
		return Instance{}, errors.New("meta group lacks SOP class or transfer syntax")
	}
	inst.DataSet = b[off:]
	return inst, nil
}
