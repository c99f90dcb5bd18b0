package app

import (
	crand "crypto/rand"
	"math/big"
)

const (
	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength = 6
	// RoomCodeChars excludes the look-alikes 0, 1, I and O.
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 64
)

// GenerateRoomCode draws a random code from RoomCodeChars.
func GenerateRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	limit := big.NewInt(int64(len(RoomCodeChars)))
	for i := range code {
		n, err := crand.Int(crand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code), nil
}
