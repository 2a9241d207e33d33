package utils

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewUserID returns a permanent participant identifier.
func NewUserID() string {
	return uuid.NewString()
}

// NewRoomCode returns a short, human-typable room identifier.
func NewRoomCode() string {
	const size = 8

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		// Fallback to timestamp if crypto/rand is unavailable.
		return strings.ToUpper(strconv.FormatInt(time.Now().UnixNano(), 36))
	}

	var b strings.Builder
	b.Grow(size)
	for _, v := range buf {
		b.WriteByte(roomCodeAlphabet[int(v)%len(roomCodeAlphabet)])
	}
	return b.String()
}
