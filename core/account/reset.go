package account

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
)

const (
	resetKeyPrefix   = "password-reset:"
	resetCodeDigits  = 6
	resetMailSubject = "Password reset code"
)

var (
	ErrInvalidOTP = errors.New("Invalid or expired OTP.")

	GenerateResetCode = generateResetCode // mockable
)

func resetKey(email string) string { return resetKeyPrefix + email }

func generateResetCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}

// RequestPasswordReset issues a fresh one-time code for the student and mails it.
// Any previous code for the same email is replaced.
// The code stays stored even when mailing fails.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	student, err := svc.GetStudentByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrEmailNotRegistered
		}
		return errors.Wrap(err, "finding student by email")
	}

	code, err := GenerateResetCode()
	if err != nil {
		return errors.Wrap(err, "generating reset code")
	}
	if err = svc.kv.Put(ctx, resetKey(student.Email), code, svc.conf.PasswordResetCodeTTL); err != nil {
		return errors.Wrap(err, "storing reset code")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      resetMailSubject,
		TemplateName: "password_reset_code",
		TemplateData: map[string]interface{}{
			"Name":     student.Name,
			"Code":     code,
			"ValidFor": svc.conf.PasswordResetCodeTTL.String(),
		},
	}
	return errors.Wrap(svc.mailSvc.SendMessages(ctx, msg), "sending reset code")
}

// ResetPassword consumes the one-time code and sets the new password.
// Every code failure is reported as ErrInvalidOTP.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) error {
	ok, err := svc.kv.Consume(ctx, resetKey(core.CleanString(rp.Email, true /* lower */)), rp.OTP)
	if err != nil {
		return errors.Wrap(err, "consuming reset code")
	}
	if !ok {
		return ErrInvalidOTP
	}

	student, err := svc.GetStudentByEmail(ctx, rp.Email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidOTP
		}
		return errors.Wrap(err, "finding student by email")
	}
	if err = student.SetPassword(rp.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return errors.Wrap(svc.repo.SetStudentPassword(ctx, student.ID, student.PasswordHash), "saving password")
}
