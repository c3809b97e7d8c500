package account

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour
	emailVerificationTimeoutDelta = 7 * 24 * time.Hour

	now := time.Now()
	acct := Account{
		ID:        "0b93e6e0-5ba7-4b86-b2d5-c2f1ec83521d",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = acct.SetPassword("pwd")

	validToken := makeToken(acct, purposePasswordReset)

	// generate an expired token
	dayLate := passwordResetTimeoutDelta + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := makeToken(acct, purposePasswordReset)
	nowFunc = time.Now // reset

	crossPurposeToken := makeToken(acct, purposeEmailVerification)

	tests := []struct {
		name    string
		acct    Account
		token   string
		wantErr error
	}{
		{name: "no token", acct: acct, wantErr: errInvalidToken},
		{name: "invalid parts len", acct: acct, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", acct: acct, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", acct: acct, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", acct: acct, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", acct: acct, token: expiredToken, wantErr: errTokenExpired},
		{name: "wrong purpose", acct: acct, token: crossPurposeToken, wantErr: errInvalidToken},
		{name: "valid token", acct: acct, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.acct, tt.token, purposePasswordReset); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenInvalidatedByStateChange(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour
	emailVerificationTimeoutDelta = 7 * 24 * time.Hour

	now := time.Now()
	acct := Account{
		ID:        "55e3f9b4-08f0-4a08-9ec9-c25839f3e518",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = acct.SetPassword("pwd")

	resetToken := makeToken(acct, purposePasswordReset)
	verifToken := makeToken(acct, purposeEmailVerification)

	// a password change kills outstanding reset tokens
	changed := acct
	_ = changed.SetPassword("new-pwd")
	if err := verifyToken(changed, resetToken, purposePasswordReset); err != errInvalidToken {
		t.Errorf("verifyToken() after password change error = %v, want %v", err, errInvalidToken)
	}

	// verifying the email kills outstanding verification tokens
	verified := acct
	verified.EmailVerified = true
	if err := verifyToken(verified, verifToken, purposeEmailVerification); err != errInvalidToken {
		t.Errorf("verifyToken() after verification error = %v, want %v", err, errInvalidToken)
	}
}
