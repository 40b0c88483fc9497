package block

// MerkleRoot computes the Bitcoin-style merkle root over the hash256 of each
// transaction, duplicating the last node on odd levels.
func MerkleRoot(txs [][]byte) Hash {
	if len(txs) == 0 {
		return ZeroHash
	}

	level := make([]Hash, len(txs))
	for i, tx := range txs {
		level[i] = Hash256(tx)
	}

	var pair [2 * HashSize]byte
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([]Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			copy(pair[:HashSize], level[i][:])
			copy(pair[HashSize:], level[i+1][:])
			next = append(next, Hash256(pair[:]))
		}
		level = next
	}

	return level[0]
}
