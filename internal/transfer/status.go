// Package transfer submits archived records over the network and repairs
// identity mismatches by rewriting demographics and resending once.
package transfer

import (
	"context"
	"sync/atomic"

	"github.com/rcliao/vitesse-sync/internal/record"
)

// Status is the classified result of one submission.
type Status int

const (
	Success Status = iota
	IdentityMismatch
	OtherFailure
)

const (
	// CodeSuccess is the store-response status for an accepted record.
	CodeSuccess uint16 = 0x0000
	// CodeIdentityMismatch (272) is returned when the record's embedded
	// demographics disagree with the receiver's canonical subject.
	CodeIdentityMismatch uint16 = 0x0110
)

// Classify maps a store-response status code to a Status.
func Classify(code uint16) Status {
	switch code {
	case CodeSuccess:
		return Success
	case CodeIdentityMismatch:
		return IdentityMismatch
	default:
		return OtherFailure
	}
}

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case IdentityMismatch:
		return "identity-mismatch"
	default:
		return "failure"
	}
}

//go:generate mockgen -destination=mock_client_test.go -package=transfer . Client

// Client submits one record and returns the receiver's status code.
type Client interface {
	Store(ctx context.Context, inst record.Instance, msgID uint16) (uint16, error)
}

// Sequence hands out message ids for one connection. It is shared by every
// submission of a run and never reset. Zero is skipped on wrap-around.
type Sequence struct {
	n atomic.Uint32
}

// NewSequence returns a sequence whose first id is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next message id.
func (s *Sequence) Next() uint16 {
	for {
		if id := uint16(s.n.Add(1)); id != 0 {
			return id
		}
	}
}
