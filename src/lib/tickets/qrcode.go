package tickets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"ticketing/src/models"

	"github.com/yeqown/go-qrcode"
)

type qrPayload struct {
	BookingID string `json:"bookingId"`
	PaymentID string `json:"paymentId"`
	EventID   string `json:"eventId"`
}

// qrText is what the gate scanner reads. With a key it is AES-GCM sealed and hex encoded.
func qrText(key []byte, b *models.Booking) (string, error) {
	raw, err := json.Marshal(qrPayload{
		BookingID: b.ID.String(),
		PaymentID: b.PaymentID,
		EventID:   b.EventID.String(),
	})
	if err != nil {
		return "", err
	}
	if len(key) == 0 {
		return string(raw), nil
	}
	return EncryptMessage(key, string(raw))
}

func qrJPEG(text string) ([]byte, error) {
	qrc, err := qrcode.New(text,
		qrcode.WithQRWidth(8),
		qrcode.WithBuiltinImageEncoder(qrcode.JPEG_FORMAT),
	)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := qrc.SaveTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncryptMessage(key []byte, message string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	cipherText := gcm.Seal(nonce, nonce, []byte(message), nil)
	return hex.EncodeToString(cipherText), nil
}

func DecryptMessage(key []byte, message string) (string, error) {
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(cipherText) < gcm.NonceSize() {
		return "", io.ErrUnexpectedEOF
	}
	plain, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
