package session

import (
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
)

func TestManager_IssueVerify(t *testing.T) {
	conf := core.NewTestConfig()
	mgr := NewManager(conf)

	student := &account.Student{ID: 7, Name: "Ann", Email: "a@x.com"}
	parent := &account.Parent{ID: 3, Name: "Bea", Email: "b@x.com"}

	for _, p := range []account.Principal{student, parent} {
		token, issued, err := mgr.Issue(p)
		if !assert.NoError(t, err) {
			continue
		}
		assert.Equal(t, issued.IssuedAt+int64(time.Hour/time.Second), issued.ExpiresAt)

		claims, err := mgr.Verify(token)
		if assert.NoError(t, err) {
			assert.Equal(t, p.PrincipalID(), claims.ID)
			assert.Equal(t, p.PrincipalEmail(), claims.Email)
			assert.Equal(t, p.PrincipalRole(), claims.Role)
		}
	}
}

func TestManager_Verify(t *testing.T) {
	conf := core.NewTestConfig()
	mgr := NewManager(conf)
	student := &account.Student{ID: 7, Email: "a@x.com"}

	valid, _, err := mgr.Issue(student)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	// alter the first signature character
	parts := strings.Split(valid, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := strings.Join([]string{parts[0], parts[1], string(sig)}, ".")

	// issued 2 hours ago
	NowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := mgr.Issue(student)
	NowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	otherConf := core.NewTestConfig()
	otherConf.SecretKey = "another-secret"
	foreign, _, err := NewManager(otherConf).Issue(student)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ID: 7, Role: account.RoleStudent}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() failed: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: valid},
		{name: "tampered signature", token: tampered, wantErr: ErrInvalidToken},
		{name: "expired", token: expired, wantErr: ErrInvalidToken},
		{name: "foreign key", token: foreign, wantErr: ErrInvalidToken},
		{name: "alg none", token: none, wantErr: ErrInvalidToken},
		{name: "garbage", token: "not.a.token", wantErr: ErrInvalidToken},
		{name: "empty", token: "", wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.Verify(tt.token)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}
