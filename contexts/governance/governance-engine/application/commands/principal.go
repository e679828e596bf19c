package commands

import (
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
)

// Principal is the identity an entry point runs as. External callers get a
// Principal from External. The self principal exists only inside the
// engine's own dispatcher and cannot be built outside this package.
type Principal struct {
	address entities.Address
	self    bool
}

func External(addr entities.Address) Principal {
	return Principal{address: addr}
}

func (p Principal) Address() entities.Address {
	return p.address
}

func (p Principal) IsSelf() bool {
	return p.self
}

func requireSelf(p Principal) error {
	if !p.self {
		return domainerrors.ErrNotSelf
	}
	return nil
}
