package consensus

import (
	"fmt"

	"empower1.com/empower1blockchain/internal/core"
	internalerrors "empower1.com/empower1blockchain/internal/errors"
)

// ValidateProposer checks that the header's validator address is the one
// the round-robin schedule expects at its height.
func (vs *ValidatorSet) ValidateProposer(header *core.BlockHeader) error {
	expectedPK, err := vs.Proposer(header.BlockNumber)
	if err != nil {
		return err
	}
	expectedAddr := expectedPK.Address()
	if header.Validator != expectedAddr {
		return fmt.Errorf("%w: expected %s, got %s", internalerrors.ErrInvalidProposer, expectedAddr, header.Validator)
	}
	return nil
}

// ValidateBlock checks the full consensus validity of a block: its
// proposer must match the round-robin schedule, and the header's signature
// must verify under that proposer's public key.
func (vs *ValidatorSet) ValidateBlock(block *core.Block) error {
	if err := vs.ValidateProposer(&block.Header); err != nil {
		return err
	}

	proposerPK, ok := vs.PublicKeyForAddress(block.Header.Validator)
	if !ok {
		return internalerrors.ErrProposerNotInValidatorSet
	}

	headerHash := block.Header.Hash()
	if !proposerPK.Verify(headerHash.Bytes(), block.Header.Signature) {
		return internalerrors.ErrInvalidSignature
	}

	return nil
}
