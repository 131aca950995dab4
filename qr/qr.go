// Package qr renders the pickup-verification QR a seller scans to complete
// an order.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// VerificationURL builds the payload encoded in the QR: the public
// verification endpoint with the order id and its HMAC token.
func VerificationURL(baseURL, orderID, token string) string {
	return fmt.Sprintf("%s/verify?id=%s&token=%s", baseURL, orderID, token)
}

// PNG encodes the URL as a QR code PNG of the given pixel size.
func PNG(url string, size int) ([]byte, error) {
	return qrcode.Encode(url, qrcode.Medium, size)
}
