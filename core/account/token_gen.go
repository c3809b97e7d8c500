package account

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/globalitacademy/yscip/core"
)

// tokenPurpose salts the signature so a password-reset token cannot be
// replayed as an email-verification token and vice versa.
type tokenPurpose string

const (
	purposePasswordReset     tokenPurpose = "yscip.core.account.password_reset"
	purposeEmailVerification tokenPurpose = "yscip.core.account.email_verification"
)

var (
	secretKey                     []byte
	passwordResetTimeoutDelta     time.Duration
	emailVerificationTimeoutDelta time.Duration
	nowFunc                       = time.Now // mockable

	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

func init() {
	secretKey = []byte(core.Conf.SecretKey)
	passwordResetTimeoutDelta = core.Conf.PasswordResetTimeoutDelta
	emailVerificationTimeoutDelta = core.Conf.EmailVerificationTimeoutDelta
}

// EncodeUID base64 encodes given Account ID
func EncodeUID(acct Account) string {
	return base64.RawURLEncoding.EncodeToString([]byte(acct.ID))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// makeToken generates a single-use, timestamped token bound to the Account's
// current state; changing the password or logging in invalidates it.
func makeToken(acct Account, purpose tokenPurpose) string {
	token, _ := makeTokenWithTimestamp(acct, purpose, numDaysSince2001(nowFunc()))
	return token
}

// verifyToken checks that a token for a given Account is valid and not expired.
func verifyToken(acct Account, token string, purpose tokenPurpose) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}
	tsB32 := parts[0]

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tsB32)
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	newToken, err := makeTokenWithTimestamp(acct, purpose, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return errInvalidToken
	}

	// check that the timestamp is within limit
	timeout := passwordResetTimeoutDelta
	if purpose == purposeEmailVerification {
		timeout = emailVerificationTimeoutDelta
	}
	if (numDaysSince2001(time.Now()) - ts) > int(timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func makeTokenWithTimestamp(acct Account, purpose tokenPurpose, ts int) (string, error) {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	sig, err := sign(hashValue(acct, purpose, ts), purpose)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", tsB32, sig), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(val []byte, purpose tokenPurpose) (string, error) {
	key := sha256.Sum256(append([]byte(purpose), secretKey...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func hashValue(acct Account, purpose tokenPurpose, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(acct.ID)
	val.Write(acct.PasswordHash)
	if !acct.LastLogin.IsZero() {
		val.WriteString(acct.LastLogin.String())
	}
	if purpose == purposeEmailVerification {
		// token dies once the address is confirmed
		val.WriteString(strconv.FormatBool(acct.EmailVerified))
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
