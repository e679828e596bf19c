package entities

import (
	"strconv"

	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
)

// IdentitySet is an ordered collection of addresses with constant-time
// membership tests and constant-time removal. Removal moves the last element
// into the vacated slot, so order is insertion order only until the first
// removal. Positions are never exposed.
//
// The zero value is an empty set ready for use.
type IdentitySet struct {
	items []Address
	index map[Address]int
}

// NewIdentitySet builds a set from addrs, failing on the first duplicate.
func NewIdentitySet(addrs ...Address) (*IdentitySet, error) {
	set := &IdentitySet{}
	for _, addr := range addrs {
		if err := set.Add(addr); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (s *IdentitySet) Add(addr Address) error {
	if s.index == nil {
		s.index = make(map[Address]int)
	}
	if _, ok := s.index[addr]; ok {
		return domainerrors.ErrAlreadyPresent
	}
	s.index[addr] = len(s.items)
	s.items = append(s.items, addr)
	return nil
}

func (s *IdentitySet) Remove(addr Address) error {
	pos, ok := s.index[addr]
	if !ok {
		return domainerrors.ErrNotPresent
	}
	last := len(s.items) - 1
	moved := s.items[last]
	s.items[pos] = moved
	s.index[moved] = pos
	s.items[last] = Address{}
	s.items = s.items[:last]
	delete(s.index, addr)
	return nil
}

func (s *IdentitySet) Contains(addr Address) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[addr]
	return ok
}

func (s *IdentitySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// All returns a snapshot in storage order.
func (s *IdentitySet) All() []Address {
	if s == nil {
		return []Address{}
	}
	return append([]Address{}, s.items...)
}

func (s *IdentitySet) Clone() *IdentitySet {
	out := &IdentitySet{
		items: s.All(),
		index: make(map[Address]int, s.Len()),
	}
	for i, addr := range out.items {
		out.index[addr] = i
	}
	return out
}

// SetKind names one of the identity sets kept by the engine.
type SetKind string

const (
	SetMembers       SetKind = "members"
	SetInvitees      SetKind = "invitees"
	SetApplicants    SetKind = "applicants"
	SetConfirmations SetKind = "confirmations"
	SetRevocations   SetKind = "revocations"
)

// SetRef addresses a single identity set. TransactionID is only meaningful
// for the per-transaction vote sets.
type SetRef struct {
	Kind          SetKind
	TransactionID uint64
}

func MembersSet() SetRef    { return SetRef{Kind: SetMembers} }
func InviteesSet() SetRef   { return SetRef{Kind: SetInvitees} }
func ApplicantsSet() SetRef { return SetRef{Kind: SetApplicants} }

func ConfirmationsOf(transactionID uint64) SetRef {
	return SetRef{Kind: SetConfirmations, TransactionID: transactionID}
}

func RevocationsOf(transactionID uint64) SetRef {
	return SetRef{Kind: SetRevocations, TransactionID: transactionID}
}

func (r SetRef) IsVoteSet() bool {
	return r.Kind == SetConfirmations || r.Kind == SetRevocations
}

// String is the stable storage key of the set, e.g. "members" or
// "confirmations/12".
func (r SetRef) String() string {
	if r.IsVoteSet() {
		return string(r.Kind) + "/" + strconv.FormatUint(r.TransactionID, 10)
	}
	return string(r.Kind)
}
