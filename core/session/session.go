// Package session issues and verifies the stateless bearer tokens handed out at login.
package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
)

var (
	ErrInvalidToken = errors.New("Invalid or expired token.")

	NowFunc = time.Now // mockable
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	ID    int          `json:"id"`
	Email string       `json:"email"`
	Role  account.Role `json:"role"`
	jwt.StandardClaims
}

func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.ID <= 0 || !c.Role.Valid() {
		return errors.New("missing principal")
	}
	return nil
}

type Manager struct {
	key      []byte
	issuer   string
	lifetime time.Duration
	method   jwt.SigningMethod
}

func NewManager(conf *core.Config) *Manager {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.StringNotEmpty(conf.SecretKey, "conf.SecretKey"),
		vala.GreaterThan(int(conf.Server.TokenLifetime), 0, "conf.Server.TokenLifetime"),
	).CheckAndPanic()

	return &Manager{
		key:      []byte(conf.SecretKey),
		issuer:   conf.AppName,
		lifetime: conf.Server.TokenLifetime,
		method:   jwt.SigningMethodHS256,
	}
}

// Issue signs a token for the principal, valid for the configured lifetime.
func (m *Manager) Issue(p account.Principal) (string, *Claims, error) {
	now := NowFunc()
	claims := &Claims{
		ID:    p.PrincipalID(),
		Email: p.PrincipalEmail(),
		Role:  p.PrincipalRole(),
		StandardClaims: jwt.StandardClaims{
			Issuer:    m.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(m.lifetime).Unix(),
		},
	}

	ss, err := jwt.NewWithClaims(m.method, claims).SignedString(m.key)
	if err != nil {
		return "", nil, errors.Wrap(err, "signing token")
	}
	return ss, claims, nil
}

// Verify checks the token signature and expiry and returns its claims.
// Every failure is reported as ErrInvalidToken.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, errors.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
