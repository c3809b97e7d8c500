package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/services/sessionstore"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "accountToken",
		Claims:        new(Claims),
	}
	contextAccountKey = "account"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	Approved     bool   `json:"approved,omitempty"`
	Verified     bool   `json:"verified,omitempty"`
}

func GetAccountClaims(acct account.Account, approved bool, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    core.Conf.AppName,
			Subject:   acct.ID,
			Audience:  "YSCIP",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         acct.Name,
		Email:        acct.Email,
		Role:         acct.Role,
		Approved:     approved,
		Verified:     acct.EmailVerified,
	}
	return claims
}

// GenerateToken generates a signed JWT token string representing the account Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextAccount(ctx echo.Context, svc account.Service, clms ...Claims) (account.Account, error) {
	if acct, ok := ctx.Get(contextAccountKey).(account.Account); ok {
		return acct, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return account.Account{}, errors.Wrap(err, "getting context claims")
		}
	}

	acct, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "finding account by ID")
	}
	ctx.Set(contextAccountKey, acct)
	return acct, nil
}

// sessionHandle rebuilds the minimal session identity from the token claims.
func sessionHandle(claims Claims) *account.SessionHandle {
	return &account.SessionHandle{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
	}
}

func refreshToken(ctx echo.Context, svc account.Service, sessions sessionstore.Store) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	acct, err := getContextAccount(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context account")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	// the old token dies with the rotation
	revokeClaims(ctx, sessions, claims)

	newClaims := GetAccountClaims(acct, svc.Approved(acct), claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}

// revokeClaims denylists the token until its natural expiry. Best effort:
// a denylist fault must never break logout or refresh.
func revokeClaims(ctx echo.Context, sessions sessionstore.Store, claims Claims) {
	if sessions == nil || claims.Id == "" {
		return
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if err := sessions.Revoke(ctx.Request().Context(), claims.Id, ttl); err != nil {
		ctx.Logger().Errorf("revoking token: %v", err)
	}
}
