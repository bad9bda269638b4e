package hashing

import "github.com/cespare/xxhash"

// MakeHash - id входа, одинаковые входы дают одинаковый id
func MakeHash(inputData []byte) uint64 {
	return xxhash.Sum64(inputData)
}
