package dimse

import (
	"encoding/binary"
	"net"
	"testing"
)

// fakeSCP is a single-connection acceptor used to exercise the client.
type fakeSCP struct {
	ln   net.Listener
	done chan struct{}

	// behaviour
	reject    bool
	pcResult  byte
	maxPDU    uint32
	status    uint16
	abortData bool
	silent    bool

	// acceptSyntax, when set, replaces the proposed transfer syntax in the AC.
	acceptSyntax string

	// observed
	calledAE    string
	callingAE   string
	abstract    string
	transfer    string
	command     commandSet
	data        []byte
	largestPDU  int
	released    bool
	dataPDUs    int
	readFailure error
}

func startSCP(t *testing.T, configure func(*fakeSCP)) *fakeSCP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSCP{ln: ln, done: make(chan struct{}), maxPDU: 256}
	if configure != nil {
		configure(s)
	}
	go s.serve()
	t.Cleanup(func() {
		ln.Close()
		<-s.done
	})
	return s
}

func (s *fakeSCP) addr() string { return s.ln.Addr().String() }

// wait blocks until the connection has been fully handled.
func (s *fakeSCP) wait() { <-s.done }

func (s *fakeSCP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	if err := s.handle(conn); err != nil {
		s.readFailure = err
	}
}

func (s *fakeSCP) handle(conn net.Conn) error {
	typ, body, err := readPDU(conn)
	if err != nil {
		return err
	}
	if typ != pduAssociateRQ {
		return ErrUnexpectedPDU
	}
	s.calledAE = uidString(body[4:20])
	s.callingAE = uidString(body[20:36])
	its, err := items(body[associateFixedLen:])
	if err != nil {
		return err
	}
	var id byte
	for _, it := range its {
		if it.typ != itemPresContextRQ {
			continue
		}
		id = it.body[0]
		subs, _ := items(it.body[4:])
		for _, sub := range subs {
			switch sub.typ {
			case itemAbstractSyntax:
				s.abstract = uidString(sub.body)
			case itemTransferSyntax:
				s.transfer = uidString(sub.body)
			}
		}
	}

	if s.reject {
		return writePDU(conn, pduAssociateRJ, []byte{0, 1, 1, 3})
	}
	if err := writePDU(conn, pduAssociateAC, s.associateAC(id)); err != nil {
		return err
	}
	if s.pcResult != 0 || s.acceptSyntax != "" {
		_, _, err := readPDU(conn)
		return err
	}

	var cmd []byte
	cmdDone, dataDone := false, false
	for !(cmdDone && (dataDone || s.noData(cmd))) {
		typ, body, err := readPDU(conn)
		if err != nil {
			return err
		}
		if typ != pduData {
			return ErrUnexpectedPDU
		}
		s.dataPDUs++
		if len(body)+6 > s.largestPDU {
			s.largestPDU = len(body) + 6
		}
		pdvs, err := parsePData(body)
		if err != nil {
			return err
		}
		for _, p := range pdvs {
			if p.command() {
				cmd = append(cmd, p.data...)
				cmdDone = p.last()
			} else {
				s.data = append(s.data, p.data...)
				dataDone = p.last()
			}
		}
		if s.abortData && len(s.data) > 0 {
			return writePDU(conn, pduAbort, []byte{0, 0, 2, 0})
		}
	}
	if s.command, err = decodeCommand(cmd); err != nil {
		return err
	}
	if s.silent {
		_, _, err := readPDU(conn)
		return err
	}

	field, _ := s.command.us(elemCommandField)
	msgID, _ := s.command.us(elemMessageID)
	rsp := encodeCommand([]commandElement{
		{elemAffectedSOPClass, ui(s.command.uid(elemAffectedSOPClass))},
		{elemCommandField, us(field | 0x8000)},
		{elemMessageIDRespondTo, us(msgID)},
		{elemDataSetType, us(dataSetAbsent)},
		{elemStatus, us(s.status)},
	})
	if err := writePDU(conn, pduData, pdataBody(id, pdvCommand|pdvLast, rsp)); err != nil {
		return err
	}

	typ, _, err = readPDU(conn)
	if err != nil {
		return err
	}
	if typ == pduReleaseRQ {
		s.released = true
		return writePDU(conn, pduReleaseRP, make([]byte, 4))
	}
	return nil
}

func (s *fakeSCP) noData(cmd []byte) bool {
	cs, err := decodeCommand(cmd)
	if err != nil {
		return false
	}
	t, _ := cs.us(elemDataSetType)
	return t == dataSetAbsent
}

func (s *fakeSCP) associateAC(id byte) []byte {
	b := make([]byte, associateFixedLen)
	b[1] = 1
	b = append(b, item(itemAppContext, []byte(appContextName))...)
	pc := []byte{id, 0, s.pcResult, 0}
	syntax := s.transfer
	if s.acceptSyntax != "" {
		syntax = s.acceptSyntax
	}
	pc = append(pc, item(itemTransferSyntax, []byte(syntax))...)
	b = append(b, item(itemPresContextAC, pc)...)
	var lim [4]byte
	binary.BigEndian.PutUint32(lim[:], s.maxPDU)
	b = append(b, item(itemUserInfo, item(itemMaxLength, lim[:]))...)
	return b
}
