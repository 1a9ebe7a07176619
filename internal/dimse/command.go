package dimse

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Command fields (PS3.7 E.1).
const (
	cmdCStoreRQ  = 0x0001
	cmdCStoreRSP = 0x8001
	cmdCEchoRQ   = 0x0030
	cmdCEchoRSP  = 0x8030

	dataSetPresent = 0x0000
	dataSetAbsent  = 0x0101
)

// Command-group element numbers.
const (
	elemGroupLength         = 0x0000
	elemAffectedSOPClass    = 0x0002
	elemCommandField        = 0x0100
	elemMessageID           = 0x0110
	elemMessageIDRespondTo  = 0x0120
	elemPriority            = 0x0700
	elemDataSetType         = 0x0800
	elemStatus              = 0x0900
	elemAffectedSOPInstance = 0x1000
)

// Command sets are always implicit VR little endian.
type commandSet map[uint16][]byte

func putElement(b *bytes.Buffer, elem uint16, v []byte) {
	var hdr [8]byte
	binary.LittleEndian.PutUint16(hdr[2:], elem)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(v)))
	b.Write(hdr[:])
	b.Write(v)
}

func us(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func ui(s string) []byte {
	b := []byte(s)
	if len(b)%2 == 1 {
		b = append(b, 0)
	}
	return b
}

// encode writes elements in ascending order behind a group length element.
func encodeCommand(elems []commandElement) []byte {
	var body bytes.Buffer
	for _, e := range elems {
		putElement(&body, e.elem, e.value)
	}
	var out bytes.Buffer
	gl := make([]byte, 4)
	binary.LittleEndian.PutUint32(gl, uint32(body.Len()))
	putElement(&out, elemGroupLength, gl)
	out.Write(body.Bytes())
	return out.Bytes()
}

type commandElement struct {
	elem  uint16
	value []byte
}

func storeRequest(msgID uint16, sopClass, sopInstance string) []byte {
	return encodeCommand([]commandElement{
		{elemAffectedSOPClass, ui(sopClass)},
		{elemCommandField, us(cmdCStoreRQ)},
		{elemMessageID, us(msgID)},
		{elemPriority, us(0)},
		{elemDataSetType, us(dataSetPresent)},
		{elemAffectedSOPInstance, ui(sopInstance)},
	})
}

func echoRequest(msgID uint16) []byte {
	return encodeCommand([]commandElement{
		{elemAffectedSOPClass, ui(verificationSOPClass)},
		{elemCommandField, us(cmdCEchoRQ)},
		{elemMessageID, us(msgID)},
		{elemDataSetType, us(dataSetAbsent)},
	})
}

func decodeCommand(b []byte) (commandSet, error) {
	cs := commandSet{}
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, fmt.Errorf("truncated command element")
		}
		group := binary.LittleEndian.Uint16(b)
		elem := binary.LittleEndian.Uint16(b[2:])
		n := int(binary.LittleEndian.Uint32(b[4:]))
		if group != 0 {
			return nil, fmt.Errorf("element (%04X,%04X) outside command group", group, elem)
		}
		if len(b) < 8+n {
			return nil, fmt.Errorf("command element (0000,%04X) overruns", elem)
		}
		cs[elem] = b[8 : 8+n]
		b = b[8+n:]
	}
	return cs, nil
}

func (cs commandSet) us(elem uint16) (uint16, bool) {
	v, ok := cs[elem]
	if !ok || len(v) != 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(v), true
}

func (cs commandSet) uid(elem uint16) string {
	return uidString(cs[elem])
}
