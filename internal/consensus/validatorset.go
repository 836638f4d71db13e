package consensus

import (
	"fmt"

	"empower1.com/empower1blockchain/internal/core/types"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// ValidatorSet is the static, ordered list of validator public keys that
// defines the round-robin proposer schedule. The set never changes after
// genesis; dynamic validator membership is out of scope.
type ValidatorSet struct {
	validators []types.PublicKey
	byAddress  map[types.Address]types.PublicKey
}

// NewValidatorSet builds a validator set from an ordered list of public
// keys. Order matters: it fixes the round-robin schedule.
func NewValidatorSet(validators []types.PublicKey) *ValidatorSet {
	byAddress := make(map[types.Address]types.PublicKey, len(validators))
	for _, pk := range validators {
		byAddress[pk.Address()] = pk
	}
	return &ValidatorSet{validators: validators, byAddress: byAddress}
}

// Len reports the number of validators in the set.
func (vs *ValidatorSet) Len() int { return len(vs.validators) }

// Proposer returns the public key expected to propose at height, cycling
// through the validator set with period len(validators).
func (vs *ValidatorSet) Proposer(height types.BlockHeight) (types.PublicKey, error) {
	if len(vs.validators) == 0 {
		return types.PublicKey{}, internalerrors.ErrEmptyValidatorSet
	}
	index := int(uint64(height) % uint64(len(vs.validators)))
	return vs.validators[index], nil
}

// PublicKeyForAddress resolves a validator's public key from its address,
// used to verify a header's signature once the expected proposer is known.
func (vs *ValidatorSet) PublicKeyForAddress(addr types.Address) (types.PublicKey, bool) {
	pk, ok := vs.byAddress[addr]
	return pk, ok
}

// Contains reports whether addr is a member of the validator set.
func (vs *ValidatorSet) Contains(addr types.Address) bool {
	_, ok := vs.byAddress[addr]
	return ok
}

// String renders the validator set as an ordered list of addresses, mainly
// for log output.
func (vs *ValidatorSet) String() string {
	s := "["
	for i, pk := range vs.validators {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s", pk.Address())
	}
	return s + "]"
}
