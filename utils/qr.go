package utils

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

const QRSize = 256

// EncodeQR renders code as a PNG image.
func EncodeQR(code string) ([]byte, error) {
	if code == "" {
		return nil, errors.New("empty qr payload")
	}
	return qrcode.Encode(code, qrcode.High, QRSize)
}
