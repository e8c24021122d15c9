package utils // package utils mints and checks the token the UI shell presents to the transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenFileName is written next to the session file; the UI shell reads it
// on start and sends the token with every request.
const TokenFileName = "bridge_token"

// bridgeSubject is the only subject a bridge token is ever minted for.
const bridgeSubject = "ui-shell"

// ErrInvalidToken covers every reason a presented token is refused.
var ErrInvalidToken = errors.New("invalid bridge token")

// BridgeToken is a signed HS256 JWT along with its expiry.
type BridgeToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewBridgeToken signs a token for the UI shell valid for ttl.
func NewBridgeToken(secret string, ttl time.Duration) (BridgeToken, error) {
	if secret == "" {
		return BridgeToken{}, errors.New("empty bridge secret")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   bridgeSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return BridgeToken{}, err
	}
	return BridgeToken{Token: signed, Exp: exp}, nil
}

// ParseBridgeToken verifies signature, algorithm, expiry and subject.
func ParseBridgeToken(secret, raw string) error {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != bridgeSubject {
		return fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}
	return nil
}

// WriteTokenFile stores tok.Token in dir with owner-only permissions and
// returns the file path.
func WriteTokenFile(dir string, tok BridgeToken) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, TokenFileName)
	if err := os.WriteFile(path, []byte(tok.Token+"\n"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}
