package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrMalformedToken = errors.New("malformed token")

// NewSecret returns a random operator secret and its bcrypt hash.
func NewSecret() (secret, hash string, err error) {
	secret = strings.ReplaceAll(uuid.NewString(), "-", "")
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash secret: %w", err)
	}
	return secret, string(h), nil
}

// FormatToken builds the bearer token "<operatorID>.<secret>".
func FormatToken(operatorID int64, secret string) string {
	return strconv.FormatInt(operatorID, 10) + "." + secret
}

// ParseToken splits a bearer token into operator id and secret.
func ParseToken(token string) (int64, string, error) {
	idPart, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return 0, "", ErrMalformedToken
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", ErrMalformedToken
	}
	return id, secret, nil
}

// CheckSecret reports whether secret matches the stored bcrypt hash.
func CheckSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
