package utils

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/google/uuid"
)

// GenerateID создает уникальный ID (для request_id и подписчиков стрима).
func GenerateID() string {
	return uuid.NewString()
}

// DeriveSeed детерминированно выводит сид из набора байтовых срезов.
// Каждая часть предваряется своей длиной, чтобы ("ab","c") и ("a","bc") давали разные сиды.
func DeriveSeed(parts ...[]byte) int64 {
	h := fnv.New64a()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
