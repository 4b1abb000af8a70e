package sefaz

import (
	"context"
	"fmt"
	"sync"

	"github.com/rezonia/nfe-engine/internal/model"
)

// StubAuthority is a test double for the Authority contract. It is
// selected explicitly by configuration (tests, local development) and
// never used as a fallback for the real client.
type StubAuthority struct {
	mu sync.Mutex

	// IssueReceipt and EventReceipt are returned on the respective
	// calls; nil means an authorized/registered receipt is synthesized.
	IssueReceipt *Receipt
	EventReceipt *Receipt
	// Err, when set, is returned from every call
	Err error

	issueCalls int
	eventCalls int
}

// NewStubAuthority creates a stub that accepts everything
func NewStubAuthority() *StubAuthority {
	return &StubAuthority{}
}

// Issue implements Authority
func (s *StubAuthority) Issue(ctx context.Context, uf string, env model.Environment, signedXML []byte) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueCalls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.IssueReceipt != nil {
		return s.receiptOrRejection(s.IssueReceipt)
	}
	reason, _ := ReasonFor(StatusAuthorized)
	return &Receipt{
		Code:     StatusAuthorized,
		Reason:   reason,
		Protocol: fmt.Sprintf("135%012d", s.issueCalls),
	}, nil
}

// Event implements Authority
func (s *StubAuthority) Event(ctx context.Context, uf string, env model.Environment, signedXML []byte) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventCalls++
	if s.Err != nil {
		return nil, s.Err
	}
	if s.EventReceipt != nil {
		return s.receiptOrRejection(s.EventReceipt)
	}
	reason, _ := ReasonFor(StatusEventRegistered)
	return &Receipt{
		Code:     StatusEventRegistered,
		Reason:   reason,
		Protocol: fmt.Sprintf("935%012d", s.eventCalls),
	}, nil
}

// GetStatus implements Authority
func (s *StubAuthority) GetStatus(ctx context.Context, uf string, env model.Environment, accessKey string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	reason, _ := ReasonFor(StatusAuthorized)
	return &Receipt{Code: StatusAuthorized, Reason: reason}, nil
}

// IssueCalls reports how many issue submissions the stub received
func (s *StubAuthority) IssueCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueCalls
}

// EventCalls reports how many event submissions the stub received
func (s *StubAuthority) EventCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventCalls
}

func (s *StubAuthority) receiptOrRejection(r *Receipt) (*Receipt, error) {
	if !Accepted(r.Code) {
		return r, model.NewProtocolRejection(r.Code, r.Reason)
	}
	return r, nil
}
