// Package core contains the fundamental data structures of the node: the
// signed Transaction, the Block and its header, and the canonical
// hashing/Merkle logic that gives every peer the same notion of a
// transaction ID and block hash.
package core
