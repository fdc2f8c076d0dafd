package crypto

import "crypto/sha1"

// HashChain is a deterministic byte source derived from a session key.
// It produces the initial keys of the addon check keystreams.
//
// part1 = SHA1(key[:20]), part3 = SHA1(key[20:]); the middle part is
// replaced by SHA1(part1, part2, part3) every 20 output bytes.
type HashChain struct {
	part1 [sha1.Size]byte
	part2 [sha1.Size]byte
	part3 [sha1.Size]byte
	taken int
}

// NewHashChain creates a chain from a session key of at least 20 bytes.
func NewHashChain(key []byte) *HashChain {
	half := min(len(key), sha1.Size)
	hc := &HashChain{
		part1: sha1.Sum(key[:half]),
		part3: sha1.Sum(key[half:]),
	}
	hc.next()
	return hc
}

// Read16 returns the next 16 bytes of the chain.
func (hc *HashChain) Read16() [16]byte {
	var out [16]byte
	for i := range out {
		if hc.taken >= len(hc.part2) {
			hc.next()
		}
		out[i] = hc.part2[hc.taken]
		hc.taken++
	}
	return out
}

func (hc *HashChain) next() {
	h := sha1.New()
	h.Write(hc.part1[:])
	h.Write(hc.part2[:])
	h.Write(hc.part3[:])
	h.Sum(hc.part2[:0])
	hc.taken = 0
}
