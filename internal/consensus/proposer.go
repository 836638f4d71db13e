package consensus

import (
	"time"

	"empower1.com/empower1blockchain/internal/core"
	"empower1.com/empower1blockchain/internal/core/types"
	"empower1.com/empower1blockchain/internal/mempool"
	"empower1.com/empower1blockchain/internal/wallet"
)

// ForkChoice picks the preferred of two competing chain heads: the longer
// chain wins, and equal-height chains are broken by the numerically smaller
// header hash. The rule is symmetric: ForkChoice(a, b) == ForkChoice(b, a).
func ForkChoice(currentHead, newHead *core.BlockHeader) *core.BlockHeader {
	if newHead.BlockNumber > currentHead.BlockNumber {
		return newHead
	}
	if newHead.BlockNumber < currentHead.BlockNumber {
		return currentHead
	}
	if newHead.Hash().Less(currentHead.Hash()) {
		return newHead
	}
	return currentHead
}

// MaxBlockTransactions is the default cap on how many pending transactions
// a proposal draws from the mempool when a node does not configure its own
// limit (see config.NodeConfig.MaxBlockTxs).
const MaxBlockTransactions = 500

// BuildProposal assembles an unsigned-then-signed block for height,
// drawing up to maxTxs transactions from the mempool in FIFO order (maxTxs
// <= 0 falls back to MaxBlockTransactions). The caller (the engine) is
// responsible for applying and broadcasting the result.
func BuildProposal(w *wallet.Wallet, height types.BlockHeight, parentHash types.Hash, mp *mempool.Mempool, now time.Time, maxTxs int) (*core.Block, error) {
	if maxTxs <= 0 {
		maxTxs = MaxBlockTransactions
	}
	pending := mp.Pending(maxTxs)
	txs := make([]core.Transaction, len(pending))
	for i, tx := range pending {
		txs[i] = *tx
	}

	header := core.BlockHeader{
		ParentHash:  parentHash,
		BlockNumber: height,
		Timestamp:   types.Timestamp(now.Unix()),
		TxRoot:      core.MerkleRoot(txs),
		Validator:   w.Address(),
	}

	sig, err := w.Sign(header.Hash().Bytes())
	if err != nil {
		return nil, err
	}
	header.Signature = sig

	return &core.Block{Header: header, Transactions: txs}, nil
}
