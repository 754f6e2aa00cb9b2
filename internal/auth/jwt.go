package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/wireplan-server/internal/core"
	"github.com/vovakirdan/wireplan-server/internal/utils"
)

// ErrInvalidKey is returned for recovery keys that are malformed, forged or expired.
var ErrInvalidKey = errors.New("invalid recovery key")

// Claims carried by a recovery key.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Config holds recovery key signing settings.
type Config struct {
	// Secret signs keys with HS256. An empty secret is replaced by a random one,
	// so keys do not survive a restart.
	Secret []byte
	Issuer string
	// TTL bounds key lifetime. Zero issues keys without expiry.
	TTL time.Duration
	Now func() time.Time
}

// RecoveryKeys issues signed recovery keys. It implements core.KeyIssuer and core.KeyRenewer.
type RecoveryKeys struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewRecoveryKeys creates an issuer from cfg.
func NewRecoveryKeys(cfg Config) *RecoveryKeys {
	k := &RecoveryKeys{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}
	if len(k.secret) == 0 {
		k.secret = []byte(utils.NewToken(32))
	}
	if k.issuer == "" {
		k.issuer = "wireplan"
	}
	if k.now == nil {
		k.now = time.Now
	}
	return k
}

// Issue signs a key bound to participant id.
func (k *RecoveryKeys) Issue(id core.ParticipantID, name string) (string, error) {
	now := k.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   k.issuer,
			Subject:  string(id),
			IssuedAt: jwt.NewNumericDate(now),
			// Random jti keeps keys distinct within the same second.
			ID: utils.NewToken(8),
		},
	}
	if k.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(k.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("sign recovery key: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the participant the key belongs to.
func (k *RecoveryKeys) Verify(key string) (core.ParticipantID, error) {
	claims, err := k.parse(key)
	if err != nil {
		return "", err
	}
	return core.ParticipantID(claims.Subject), nil
}

// NeedsRenewal reports whether a valid key has used up more than half of its lifetime.
// It implements core.KeyRenewer.
func (k *RecoveryKeys) NeedsRenewal(key string) bool {
	if k.ttl <= 0 {
		return false
	}
	claims, err := k.parse(key)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Sub(k.now()) < k.ttl/2
}

func (k *RecoveryKeys) parse(key string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(key, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return k.secret, nil
	},
		jwt.WithIssuer(k.issuer),
		jwt.WithTimeFunc(k.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidKey
	}
	return claims, nil
}
