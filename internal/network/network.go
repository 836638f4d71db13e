// Package network handles peer-to-peer gossip for EmPower1: block and
// transaction propagation and chain-sync requests over three topics
// (TopicBlocks, TopicTransactions, TopicSync). SimulatedNetwork (simulation.go)
// is an in-memory transport for tests and single-process multi-node runs;
// GossipNode (gossip.go) is the production libp2p/GossipSub transport. Both
// expose the same reception-channel shape so node runtime code is written
// once against either.
package network

import (
	"encoding/binary"
	"fmt"

	"empower1.com/empower1blockchain/internal/core/types"
)

// Sync message kinds carried as the first byte of a TopicSync payload.
const (
	syncKindRequest byte = iota
	syncKindBlocks
	syncKindNoBlocks
)

// SyncRequest asks a peer for blocks starting at FromHeight. ToHash is
// carried on the wire, but the node's responder does not read it: it answers
// from FromHeight toward its own tip whatever ToHash holds.
type SyncRequest struct {
	FromHeight types.BlockHeight
	ToHash     types.Hash
}

// Encode serializes a SyncRequest for transmission on TopicSync.
func (r SyncRequest) Encode() []byte {
	buf := make([]byte, 1+8+types.HashSize)
	buf[0] = syncKindRequest
	binary.LittleEndian.PutUint64(buf[1:9], uint64(r.FromHeight))
	copy(buf[9:], r.ToHash.Bytes())
	return buf
}

// DecodeSyncRequest parses a SyncRequest previously produced by Encode.
func DecodeSyncRequest(data []byte) (SyncRequest, error) {
	if len(data) != 1+8+types.HashSize || data[0] != syncKindRequest {
		return SyncRequest{}, fmt.Errorf("network: malformed sync request")
	}
	var h types.Hash
	copy(h[:], data[9:])
	return SyncRequest{
		FromHeight: types.BlockHeight(binary.LittleEndian.Uint64(data[1:9])),
		ToHash:     h,
	}, nil
}

// SyncResponseBlocks carries one or more serialized blocks answering a
// SyncRequest. Blocks are pre-serialized with core.Block.Serialize so this
// package does not need to import core's gob encoding details.
type SyncResponseBlocks struct {
	Blocks [][]byte
}

// Encode serializes a SyncResponseBlocks for transmission on TopicSync.
func (r SyncResponseBlocks) Encode() []byte {
	buf := []byte{syncKindBlocks}
	for _, b := range r.Blocks {
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(b)))
		buf = append(buf, lenBuf...)
		buf = append(buf, b...)
	}
	return buf
}

// DecodeSyncResponseBlocks parses a SyncResponseBlocks previously produced by
// Encode.
func DecodeSyncResponseBlocks(data []byte) (SyncResponseBlocks, error) {
	if len(data) == 0 || data[0] != syncKindBlocks {
		return SyncResponseBlocks{}, fmt.Errorf("network: malformed sync response")
	}
	var blocks [][]byte
	pos := 1
	for pos < len(data) {
		if pos+4 > len(data) {
			return SyncResponseBlocks{}, fmt.Errorf("network: truncated sync response")
		}
		n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return SyncResponseBlocks{}, fmt.Errorf("network: truncated sync response block")
		}
		blocks = append(blocks, data[pos:pos+n])
		pos += n
	}
	return SyncResponseBlocks{Blocks: blocks}, nil
}

// EncodeSyncResponseNoBlocks produces the empty "I have nothing newer"
// response to a SyncRequest.
func EncodeSyncResponseNoBlocks() []byte {
	return []byte{syncKindNoBlocks}
}

// IsSyncResponseNoBlocks reports whether a TopicSync payload is the
// no-blocks response.
func IsSyncResponseNoBlocks(data []byte) bool {
	return len(data) == 1 && data[0] == syncKindNoBlocks
}
