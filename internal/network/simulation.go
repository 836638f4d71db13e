package network

import (
	"fmt"
	"log"
	"sync"

	"empower1.com/empower1blockchain/internal/core"
)

// Gossip topic names, shared by both the in-memory simulated transport and
// the libp2p production transport.
const (
	TopicBlocks       = "blocks"
	TopicTransactions = "transactions"
	TopicSync         = "sync"
)

// MessageHandler defines the function signature for handling messages received from the network.
type MessageHandler func(peerID string, messageType string, data []byte)

// NetworkMessage is a wrapper for data sent between simulated peers, including message type.
type NetworkMessage struct {
	Type string // one of TopicBlocks, TopicTransactions, TopicSync
	Data []byte
}

// Peer represents a connected node in the simulated network.
type Peer struct {
	ID               string
	IncomingMessages chan NetworkMessage
	stopChan         chan struct{}
	wg               sync.WaitGroup
	network          *SimulatedNetwork
}

// NewPeer creates a new Peer instance.
func NewPeer(id string, net *SimulatedNetwork) *Peer {
	return &Peer{
		ID:               id,
		IncomingMessages: make(chan NetworkMessage, 100),
		stopChan:         make(chan struct{}),
		network:          net,
	}
}

// conceptualPeerMessageProcessor is run as a goroutine for each peer.
// It reads NetworkMessage from p.IncomingMessages and routes the raw
// payload to the matching reception channel on the owning SimulatedNetwork.
func (p *Peer) conceptualPeerMessageProcessor() {
	defer p.wg.Done()
	log.Printf("SIMNET_PEER_PROCESSOR [%s]: starting message processor for peer connection to [%s]", p.network.NodeID, p.ID)
	for {
		select {
		case msg, ok := <-p.IncomingMessages:
			if !ok {
				log.Printf("SIMNET_PEER_PROCESSOR [%s]: IncomingMessages channel closed for peer [%s], processor stopping", p.network.NodeID, p.ID)
				return
			}
			p.route(msg)
		case <-p.stopChan:
			log.Printf("SIMNET_PEER_PROCESSOR [%s]: stopping message processor for peer [%s]", p.network.NodeID, p.ID)
			return
		}
	}
}

func (p *Peer) route(msg NetworkMessage) {
	switch msg.Type {
	case TopicBlocks:
		block, err := core.DeserializeBlock(msg.Data)
		if err != nil {
			log.Printf("SIMNET_PEER_PROCESSOR_ERROR [%s]: peer [%s] failed to deserialize block: %v", p.network.NodeID, p.ID, err)
		}
		select {
		case p.network.BlockBroadcastChannel <- msg.Data:
			if block != nil {
				log.Printf("SIMNET_PEER_PROCESSOR [%s]: routed block %s from [%s]", p.network.NodeID, block.Header.Hash(), p.ID)
			}
		default:
			log.Printf("SIMNET_PEER_PROCESSOR [%s]: BlockBroadcastChannel full, dropping block from [%s]", p.network.NodeID, p.ID)
		}
	case TopicTransactions:
		tx, err := core.DeserializeTransaction(msg.Data)
		if err != nil {
			log.Printf("SIMNET_PEER_PROCESSOR_ERROR [%s]: peer [%s] failed to deserialize transaction: %v", p.network.NodeID, p.ID, err)
		}
		select {
		case p.network.TransactionBroadcastChannel <- msg.Data:
			if tx != nil {
				log.Printf("SIMNET_PEER_PROCESSOR [%s]: routed transaction %s from [%s]", p.network.NodeID, tx.ID(), p.ID)
			}
		default:
			log.Printf("SIMNET_PEER_PROCESSOR [%s]: TransactionBroadcastChannel full, dropping transaction from [%s]", p.network.NodeID, p.ID)
		}
	case TopicSync:
		select {
		case p.network.SyncChannel <- msg.Data:
			log.Printf("SIMNET_PEER_PROCESSOR [%s]: routed sync message from [%s]", p.network.NodeID, p.ID)
		default:
			log.Printf("SIMNET_PEER_PROCESSOR [%s]: SyncChannel full, dropping sync message from [%s]", p.network.NodeID, p.ID)
		}
	default:
		p.network.mu.RLock()
		handler := p.network.messageHandler
		p.network.mu.RUnlock()
		if handler != nil {
			handler(p.ID, msg.Type, msg.Data)
			return
		}
		log.Printf("SIMNET_PEER_PROCESSOR [%s]: peer [%s] sent unknown message type %q, discarding", p.network.NodeID, p.ID, msg.Type)
	}
}

// StartProcessor starts the peer's message processor goroutine.
func (p *Peer) StartProcessor() {
	p.wg.Add(1)
	go p.conceptualPeerMessageProcessor()
}

// StopProcessor signals the peer's message processor to stop and waits for it.
func (p *Peer) StopProcessor() {
	close(p.stopChan)
	p.wg.Wait()
}

// SimulatedNetwork is an in-memory, channel-based pub-sub transport used by
// tests and single-process multi-node simulations. It satisfies the same
// broadcast contract as the libp2p-backed production transport
// (see gossip.go) without requiring a real network.
type SimulatedNetwork struct {
	NodeID                      string
	mu                          sync.RWMutex
	messageHandler              MessageHandler
	BlockBroadcastChannel       chan []byte
	TransactionBroadcastChannel chan []byte
	SyncChannel                 chan []byte
	peers                       map[string]*Peer
}

// NewSimulatedNetwork creates a new SimulatedNetwork instance.
func NewSimulatedNetwork(nodeID string) *SimulatedNetwork {
	if nodeID == "" {
		nodeID = "default_sim_node"
	}
	return &SimulatedNetwork{
		NodeID:                      nodeID,
		BlockBroadcastChannel:       make(chan []byte, 100),
		TransactionBroadcastChannel: make(chan []byte, 100),
		SyncChannel:                 make(chan []byte, 100),
		peers:                       make(map[string]*Peer),
	}
}

// ConnectPeer adds another node to this node's peer list.
func (sn *SimulatedNetwork) ConnectPeer(peerNodeID string) (*Peer, error) {
	if peerNodeID == "" {
		return nil, fmt.Errorf("SIMNET [%s]: cannot connect to peer with empty ID", sn.NodeID)
	}
	if sn.NodeID == peerNodeID {
		return nil, fmt.Errorf("SIMNET [%s]: cannot connect to self", sn.NodeID)
	}
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if existingPeer, exists := sn.peers[peerNodeID]; exists {
		return existingPeer, nil
	}

	peer := NewPeer(peerNodeID, sn)
	peer.StartProcessor()
	sn.peers[peerNodeID] = peer
	log.Printf("SIMNET [%s]: connected to peer [%s]", sn.NodeID, peerNodeID)
	return peer, nil
}

// DisconnectPeer removes a peer from the list and stops its processor.
func (sn *SimulatedNetwork) DisconnectPeer(peerNodeID string) {
	sn.mu.Lock()
	peer, exists := sn.peers[peerNodeID]
	if !exists {
		sn.mu.Unlock()
		return
	}
	delete(sn.peers, peerNodeID)
	sn.mu.Unlock()

	peer.StopProcessor()
	log.Printf("SIMNET [%s]: disconnected from peer [%s]", sn.NodeID, peerNodeID)
}

func (sn *SimulatedNetwork) sendToPeers(msg NetworkMessage) {
	sn.mu.RLock()
	peersToNotify := make([]*Peer, 0, len(sn.peers))
	for _, p := range sn.peers {
		peersToNotify = append(peersToNotify, p)
	}
	sn.mu.RUnlock()

	for _, peer := range peersToNotify {
		select {
		case peer.IncomingMessages <- msg:
		default:
			log.Printf("SIMNET [%s]: peer [%s]'s inbox full for topic %s, message dropped", sn.NodeID, peer.ID, msg.Type)
		}
	}
}

// BroadcastBlock serializes a block and publishes it on the blocks topic.
// It satisfies consensus.BlockBroadcaster.
func (sn *SimulatedNetwork) BroadcastBlock(block *core.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return err
	}
	sn.sendToPeers(NetworkMessage{Type: TopicBlocks, Data: data})
	return nil
}

// BroadcastTransaction serializes a transaction and publishes it on the
// transactions topic.
func (sn *SimulatedNetwork) BroadcastTransaction(tx *core.Transaction) error {
	data, err := tx.Serialize()
	if err != nil {
		return err
	}
	sn.sendToPeers(NetworkMessage{Type: TopicTransactions, Data: data})
	return nil
}

// BroadcastSyncMessage publishes a pre-encoded sync-protocol message
// (SyncRequest/SyncResponseBlocks/SyncResponseNoBlocks) on the sync topic.
func (sn *SimulatedNetwork) BroadcastSyncMessage(data []byte) error {
	sn.sendToPeers(NetworkMessage{Type: TopicSync, Data: data})
	return nil
}

// RegisterMessageHandler sets a handler function for message types other
// than the three well-known topics.
func (sn *SimulatedNetwork) RegisterMessageHandler(handler MessageHandler) {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	sn.messageHandler = handler
}

// GetBlockReceptionChannel returns a read-only channel for receiving block broadcasts.
func (sn *SimulatedNetwork) GetBlockReceptionChannel() <-chan []byte {
	return sn.BlockBroadcastChannel
}

// GetTransactionReceptionChannel returns a read-only channel for receiving transaction broadcasts.
func (sn *SimulatedNetwork) GetTransactionReceptionChannel() <-chan []byte {
	return sn.TransactionBroadcastChannel
}

// GetSyncReceptionChannel returns a read-only channel for receiving sync-protocol messages.
func (sn *SimulatedNetwork) GetSyncReceptionChannel() <-chan []byte {
	return sn.SyncChannel
}

// SimulateReceive manually injects a message into this node's reception
// path, as if it had arrived from peerID. Used by tests that do not wire up
// a full peer connection.
func (sn *SimulatedNetwork) SimulateReceive(peerID string, messageType string, data []byte) {
	var target chan<- []byte
	switch messageType {
	case TopicBlocks:
		target = sn.BlockBroadcastChannel
	case TopicTransactions:
		target = sn.TransactionBroadcastChannel
	case TopicSync:
		target = sn.SyncChannel
	default:
		sn.mu.RLock()
		handler := sn.messageHandler
		sn.mu.RUnlock()
		if handler != nil {
			handler(peerID, messageType, data)
		}
		return
	}

	select {
	case target <- data:
	default:
		log.Printf("SIMNET [%s]: SimulateReceive: reception channel full for topic %s, message dropped", sn.NodeID, messageType)
	}
}
