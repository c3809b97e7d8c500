package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/services/sessionstore"
)

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(account.RoleAdmin)
}

// roleMiddleware lets requests through when the token carries any of the
// provided roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// approvedMiddleware gates endpoints behind the registration approval check.
// Admins pass regardless of the stored flag.
func approvedMiddleware(svc account.Service, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Role == account.RoleAdmin {
				return next(ctx)
			}
			st := account.ResolveState(ctx.Request().Context(), svc, logger, sessionHandle(claims))
			if !st.IsApproved {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// revocationMiddleware rejects tokens whose ID landed on the denylist.
func revocationMiddleware(sessions sessionstore.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if sessions == nil {
				return next(ctx)
			}
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Id != "" {
				revoked, err := sessions.IsRevoked(ctx.Request().Context(), claims.Id)
				if err != nil {
					// the denylist being down must not take auth down with it
					ctx.Logger().Errorf("checking token revocation: %v", err)
					return next(ctx)
				}
				if revoked {
					return errTokenRevoked
				}
			}
			if claims.Subject != "" {
				at, err := sessions.AccountRevokedAt(ctx.Request().Context(), claims.Subject)
				if err != nil {
					ctx.Logger().Errorf("checking account revocation: %v", err)
					return next(ctx)
				}
				// tokens issued up to the bulk revocation are dead
				if !at.IsZero() && !time.Unix(claims.IssuedAt, 0).After(at) {
					return errTokenRevoked
				}
			}
			return next(ctx)
		}
	}
}
