package dimse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// PDU types (PS3.8 9.3).
const (
	pduAssociateRQ = 0x01
	pduAssociateAC = 0x02
	pduAssociateRJ = 0x03
	pduData        = 0x04
	pduReleaseRQ   = 0x05
	pduReleaseRP   = 0x06
	pduAbort       = 0x07
)

// Variable item types.
const (
	itemAppContext     = 0x10
	itemPresContextRQ  = 0x20
	itemPresContextAC  = 0x21
	itemAbstractSyntax = 0x30
	itemTransferSyntax = 0x40
	itemUserInfo       = 0x50
	itemMaxLength      = 0x51
	itemImplClassUID   = 0x52
	itemImplVersion    = 0x55
)

const (
	appContextName = "1.2.840.10008.3.1.1.1"
	implClassUID   = "2.25.329800735698586629295641978511506172918"
	implVersion    = "VITESSE_SYNC"

	// upper bound on an inbound PDU body
	maxInboundPDU = 64 << 20
	// PDV item length, context id and control header
	pdvOverhead = 6
)

// PDV message control header bits.
const (
	pdvCommand = 0x01
	pdvLast    = 0x02
)

func writePDU(w io.Writer, typ byte, body []byte) error {
	hdr := make([]byte, 6, 6+len(body))
	hdr[0] = typ
	binary.BigEndian.PutUint32(hdr[2:], uint32(len(body)))
	_, err := w.Write(append(hdr, body...))
	return err
}

func readPDU(r io.Reader) (byte, []byte, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(hdr[2:])
	if n > maxInboundPDU {
		return 0, nil, fmt.Errorf("pdu length %d exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return hdr[0], body, nil
}

func item(typ byte, body []byte) []byte {
	b := make([]byte, 4, 4+len(body))
	b[0] = typ
	binary.BigEndian.PutUint16(b[2:], uint16(len(body)))
	return append(b, body...)
}

// items splits a run of variable items into type/body pairs.
func items(b []byte) ([]rawItem, error) {
	var out []rawItem
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("truncated item header")
		}
		n := int(binary.BigEndian.Uint16(b[2:]))
		if len(b) < 4+n {
			return nil, fmt.Errorf("item 0x%02X overruns pdu", b[0])
		}
		out = append(out, rawItem{typ: b[0], body: b[4 : 4+n]})
		b = b[4+n:]
	}
	return out, nil
}

type rawItem struct {
	typ  byte
	body []byte
}

func aeTitle(s string) []byte {
	b := []byte(fmt.Sprintf("%-16s", s))
	return b[:16]
}

// associateRQ builds an A-ASSOCIATE-RQ body proposing one presentation context.
func associateRQ(called, calling string, pcID byte, abstract, transfer string, maxPDU uint32) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x00, 0x01, 0x00, 0x00})
	b.Write(aeTitle(called))
	b.Write(aeTitle(calling))
	b.Write(make([]byte, 32))
	b.Write(item(itemAppContext, []byte(appContextName)))

	pc := []byte{pcID, 0, 0, 0}
	pc = append(pc, item(itemAbstractSyntax, []byte(abstract))...)
	pc = append(pc, item(itemTransferSyntax, []byte(transfer))...)
	b.Write(item(itemPresContextRQ, pc))

	var maxLen [4]byte
	binary.BigEndian.PutUint32(maxLen[:], maxPDU)
	user := item(itemMaxLength, maxLen[:])
	user = append(user, item(itemImplClassUID, []byte(implClassUID))...)
	user = append(user, item(itemImplVersion, []byte(implVersion))...)
	b.Write(item(itemUserInfo, user))
	return b.Bytes()
}

// acceptance is what the acceptor agreed to in A-ASSOCIATE-AC.
type acceptance struct {
	results map[byte]byte
	syntax  map[byte]string
	maxPDU  uint32
}

// fixed fields before the variable items of an A-ASSOCIATE-AC/RQ
const associateFixedLen = 68

func parseAssociateAC(body []byte) (acceptance, error) {
	a := acceptance{results: map[byte]byte{}, syntax: map[byte]string{}}
	if len(body) < associateFixedLen {
		return a, fmt.Errorf("short A-ASSOCIATE-AC")
	}
	its, err := items(body[associateFixedLen:])
	if err != nil {
		return a, err
	}
	for _, it := range its {
		switch it.typ {
		case itemPresContextAC:
			if len(it.body) < 4 {
				return a, fmt.Errorf("short presentation context item")
			}
			id := it.body[0]
			a.results[id] = it.body[2]
			subs, err := items(it.body[4:])
			if err != nil {
				return a, err
			}
			for _, s := range subs {
				if s.typ == itemTransferSyntax {
					a.syntax[id] = uidString(s.body)
				}
			}
		case itemUserInfo:
			subs, err := items(it.body)
			if err != nil {
				return a, err
			}
			for _, s := range subs {
				if s.typ == itemMaxLength && len(s.body) == 4 {
					a.maxPDU = binary.BigEndian.Uint32(s.body)
				}
			}
		}
	}
	return a, nil
}

// pdv is one presentation data value from a P-DATA-TF.
type pdv struct {
	pcID    byte
	control byte
	data    []byte
}

func (p pdv) command() bool { return p.control&pdvCommand != 0 }
func (p pdv) last() bool    { return p.control&pdvLast != 0 }

func parsePData(body []byte) ([]pdv, error) {
	var out []pdv
	for len(body) > 0 {
		if len(body) < pdvOverhead {
			return nil, fmt.Errorf("truncated pdv")
		}
		n := int(binary.BigEndian.Uint32(body))
		if n < 2 || len(body) < 4+n {
			return nil, fmt.Errorf("pdv length %d overruns pdu", n)
		}
		out = append(out, pdv{pcID: body[4], control: body[5], data: body[6 : 4+n]})
		body = body[4+n:]
	}
	return out, nil
}

func pdataBody(pcID, control byte, data []byte) []byte {
	b := make([]byte, pdvOverhead, pdvOverhead+len(data))
	binary.BigEndian.PutUint32(b, uint32(len(data)+2))
	b[4] = pcID
	b[5] = control
	return append(b, data...)
}

func uidString(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}
