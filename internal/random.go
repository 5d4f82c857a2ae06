package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const usernameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const opaqueSecretSize = 32

// NewOTP returns a string of crypto-random decimal digits.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// NewUsername builds "<prefix>-<random>" padded with crypto-random
// uppercase letters and digits to exactly total characters.
func NewUsername(prefix string, total int) (string, error) {
	randomLen := total - len(prefix) - 1
	if randomLen < 1 {
		return "", errors.New("username length too short for prefix")
	}

	var b strings.Builder
	b.Grow(total)
	b.WriteString(prefix)
	b.WriteByte('-')

	max := big.NewInt(int64(len(usernameAlphabet)))
	for i := 0; i < randomLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(usernameAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NewIDNumber samples a crypto-random integer in [min, max].
func NewIDNumber(min, max int64) (int64, error) {
	if max <= min {
		return 0, errors.New("invalid id number range")
	}

	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}

// NewOpaqueSecret returns a base64url-encoded random secret. Hashing it
// produces a password hash that no presented password can ever match.
func NewOpaqueSecret() (string, error) {
	var raw [opaqueSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
