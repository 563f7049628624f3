package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// TicketCodeBytes gives 32 hex characters per ticket code.
const TicketCodeBytes = 16

func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateTicketCode returns an unguessable code suitable for a QR payload.
func GenerateTicketCode() (string, error) {
	return GenerateCode(TicketCodeBytes)
}
