package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/gymops/internal/clock"
)

const linkIssuer = "gymops"

// DefaultLinkTTL is how long a signed link stays valid when none is configured.
const DefaultLinkTTL = 15 * time.Minute

var ErrInvalidLink = errors.New("invalid or expired link")

// LinkSigner issues short-lived HS256 tokens that grant access to one
// resource, such as "backup:12", without an operator bearer token.
type LinkSigner struct {
	key   []byte
	ttl   time.Duration
	clock clock.Clock
}

type linkClaims struct {
	OperatorID int64 `json:"op"`
	jwt.RegisteredClaims
}

// NewLinkSigner signs with key. An empty key gets a random one, which means
// links stop working when the process restarts.
func NewLinkSigner(key []byte, ttl time.Duration, c clock.Clock) (*LinkSigner, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate link key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &LinkSigner{key: key, ttl: ttl, clock: c}, nil
}

// Sign returns a token for kind/id on behalf of operatorID and when it
// expires.
func (s *LinkSigner) Sign(kind string, id, operatorID int64) (string, time.Time, error) {
	now := s.clock.Now()
	expires := now.Add(s.ttl)
	claims := linkClaims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    linkIssuer,
			Subject:   kind + ":" + strconv.FormatInt(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s link: %w", kind, err)
	}
	return tok, expires, nil
}

// Verify checks token and returns the id it grants for kind and the
// operator who requested it.
func (s *LinkSigner) Verify(token, kind string) (id, operatorID int64, err error) {
	var claims linkClaims
	_, err = jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(linkIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	rest, ok := strings.CutPrefix(claims.Subject, kind+":")
	if !ok {
		return 0, 0, ErrInvalidLink
	}
	id, err = strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, ErrInvalidLink
	}
	return id, claims.OperatorID, nil
}
