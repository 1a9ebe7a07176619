// Package dimse is a minimal DICOM upper-layer client: it opens an
// association per request and submits C-STORE (and C-ECHO) requests.
package dimse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/record"
)

const (
	verificationSOPClass   = "1.2.840.10008.1.1"
	implicitVRLittleEndian = "1.2.840.10008.1.2"

	// DefaultMaxPDU is the receive limit advertised to the acceptor.
	DefaultMaxPDU uint32 = 16384
	// DefaultTimeout bounds dialing and each PDU read or write.
	DefaultTimeout = 30 * time.Second

	pcID byte = 1
)

var (
	// ErrNoPresentationContext means the acceptor refused the proposed
	// abstract/transfer syntax pair.
	ErrNoPresentationContext = errors.New("presentation context not accepted")
	ErrUnexpectedPDU         = errors.New("unexpected pdu")
)

// RejectError is an A-ASSOCIATE-RJ from the acceptor.
type RejectError struct {
	Result, Source, Reason byte
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("association rejected (result %d, source %d, reason %d)", e.Result, e.Source, e.Reason)
}

// AbortError is an A-ABORT from the peer.
type AbortError struct {
	Source, Reason byte
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("association aborted (source %d, reason %d)", e.Source, e.Reason)
}

// Config addresses the remote application entity.
type Config struct {
	CallingAE string
	CalledAE  string
	Addr      string
	Timeout   time.Duration
	MaxPDU    uint32
}

// Client is a service class user. Each call runs on its own association.
type Client struct {
	cfg    Config
	log    *zap.Logger
	dialer net.Dialer
}

// NewClient returns a Client with zero config fields defaulted.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxPDU == 0 {
		cfg.MaxPDU = DefaultMaxPDU
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, log: log, dialer: net.Dialer{Timeout: cfg.Timeout}}
}

// Store submits one instance and returns the C-STORE-RSP status.
func (c *Client) Store(ctx context.Context, inst record.Instance, msgID uint16) (uint16, error) {
	cmd := storeRequest(msgID, inst.SOPClassUID, inst.SOPInstanceUID)
	rsp, err := c.exchange(ctx, inst.SOPClassUID, inst.TransferSyntaxUID, cmd, inst.DataSet)
	if err != nil {
		return 0, err
	}
	if f, _ := rsp.us(elemCommandField); f != cmdCStoreRSP {
		return 0, fmt.Errorf("%w: command field 0x%04X", ErrUnexpectedPDU, f)
	}
	return responseStatus(rsp, msgID)
}

// Echo verifies the acceptor is reachable and returns its status.
func (c *Client) Echo(ctx context.Context, msgID uint16) (uint16, error) {
	rsp, err := c.exchange(ctx, verificationSOPClass, implicitVRLittleEndian, echoRequest(msgID), nil)
	if err != nil {
		return 0, err
	}
	if f, _ := rsp.us(elemCommandField); f != cmdCEchoRSP {
		return 0, fmt.Errorf("%w: command field 0x%04X", ErrUnexpectedPDU, f)
	}
	return responseStatus(rsp, msgID)
}

func responseStatus(rsp commandSet, msgID uint16) (uint16, error) {
	if id, ok := rsp.us(elemMessageIDRespondTo); ok && id != msgID {
		return 0, fmt.Errorf("response for message %d, want %d", id, msgID)
	}
	status, ok := rsp.us(elemStatus)
	if !ok {
		return 0, errors.New("response lacks status")
	}
	return status, nil
}

func (c *Client) exchange(ctx context.Context, abstract, transfer string, cmd, data []byte) (commandSet, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	a := &association{conn: conn, ctx: ctx, timeout: c.cfg.Timeout}
	rsp, err := c.run(a, abstract, transfer, cmd, data)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return rsp, err
}

func (c *Client) run(a *association, abstract, transfer string, cmd, data []byte) (commandSet, error) {
	maxSend, err := a.open(c.cfg, abstract, transfer)
	if err != nil {
		return nil, err
	}
	c.log.Debug("Association established",
		zap.String("called_ae", c.cfg.CalledAE),
		zap.String("abstract_syntax", abstract),
		zap.Uint32("peer_max_pdu", maxSend))

	if err := a.send(cmd, pdvCommand, maxSend); err != nil {
		return nil, err
	}
	if data != nil {
		if err := a.send(data, 0, maxSend); err != nil {
			return nil, err
		}
	}
	rsp, err := a.receiveCommand()
	if err != nil {
		return nil, err
	}
	if err := a.release(); err != nil {
		c.log.Debug("Release not acknowledged", zap.Error(err))
	}
	return rsp, nil
}

type association struct {
	conn    net.Conn
	ctx     context.Context
	timeout time.Duration
}

func (a *association) refresh() error {
	if err := a.ctx.Err(); err != nil {
		return err
	}
	return a.conn.SetDeadline(time.Now().Add(a.timeout))
}

func (a *association) write(typ byte, body []byte) error {
	if err := a.refresh(); err != nil {
		return err
	}
	return writePDU(a.conn, typ, body)
}

func (a *association) read() (byte, []byte, error) {
	if err := a.refresh(); err != nil {
		return 0, nil, err
	}
	return readPDU(a.conn)
}

// open negotiates the association and returns the largest PDU the peer accepts.
func (a *association) open(cfg Config, abstract, transfer string) (uint32, error) {
	rq := associateRQ(cfg.CalledAE, cfg.CallingAE, pcID, abstract, transfer, cfg.MaxPDU)
	if err := a.write(pduAssociateRQ, rq); err != nil {
		return 0, err
	}
	typ, body, err := a.read()
	if err != nil {
		return 0, err
	}
	switch typ {
	case pduAssociateAC:
	case pduAssociateRJ:
		if len(body) < 4 {
			return 0, &RejectError{}
		}
		return 0, &RejectError{Result: body[1], Source: body[2], Reason: body[3]}
	case pduAbort:
		return 0, abortError(body)
	default:
		return 0, fmt.Errorf("%w: type 0x%02X during association", ErrUnexpectedPDU, typ)
	}
	acc, err := parseAssociateAC(body)
	if err != nil {
		return 0, err
	}
	if r, ok := acc.results[pcID]; !ok || r != 0 {
		a.abort()
		return 0, fmt.Errorf("%w: %s / %s", ErrNoPresentationContext, abstract, transfer)
	}
	if ts, ok := acc.syntax[pcID]; ok && ts != transfer {
		a.abort()
		return 0, fmt.Errorf("%w: proposed %s, accepted %s", ErrNoPresentationContext, transfer, ts)
	}
	maxSend := acc.maxPDU
	if maxSend == 0 || maxSend > cfg.MaxPDU {
		maxSend = cfg.MaxPDU
	}
	return maxSend, nil
}

// send fragments b into P-DATA-TF PDUs no larger than maxPDU.
func (a *association) send(b []byte, control byte, maxPDU uint32) error {
	chunk := int(maxPDU) - pdvOverhead
	if chunk <= 0 {
		return fmt.Errorf("max pdu %d too small", maxPDU)
	}
	for {
		n := min(len(b), chunk)
		ctl := control
		if n == len(b) {
			ctl |= pdvLast
		}
		if err := a.write(pduData, pdataBody(pcID, ctl, b[:n])); err != nil {
			return err
		}
		b = b[n:]
		if len(b) == 0 {
			return nil
		}
	}
}

// receiveCommand reassembles the next command set, skipping any data set.
func (a *association) receiveCommand() (commandSet, error) {
	var cmd []byte
	for {
		typ, body, err := a.read()
		if err != nil {
			return nil, err
		}
		switch typ {
		case pduData:
		case pduAbort:
			return nil, abortError(body)
		default:
			return nil, fmt.Errorf("%w: type 0x%02X awaiting response", ErrUnexpectedPDU, typ)
		}
		pdvs, err := parsePData(body)
		if err != nil {
			return nil, err
		}
		for _, p := range pdvs {
			if !p.command() {
				continue
			}
			cmd = append(cmd, p.data...)
			if p.last() {
				return decodeCommand(cmd)
			}
		}
	}
}

func (a *association) release() error {
	if err := a.write(pduReleaseRQ, make([]byte, 4)); err != nil {
		return err
	}
	typ, body, err := a.read()
	if err != nil {
		return err
	}
	switch typ {
	case pduReleaseRP:
		return nil
	case pduAbort:
		return abortError(body)
	default:
		return fmt.Errorf("%w: type 0x%02X awaiting release", ErrUnexpectedPDU, typ)
	}
}

func (a *association) abort() {
	_ = writePDU(a.conn, pduAbort, make([]byte, 4))
}

func abortError(body []byte) error {
	if len(body) < 4 {
		return &AbortError{}
	}
	return &AbortError{Source: body[2], Reason: body[3]}
}
