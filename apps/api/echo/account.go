package echoapi

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/notification"
	"github.com/globalitacademy/yscip/services/sessionstore"
)

var errAcctNotFoundInCtx = errors.New("account object not found in echo.Context")

// accountSortFields are the columns the account listing may be ordered by.
var accountSortFields = []string{
	"name", "email", "role", "department", "created_at", "updated_at", "last_login",
}

type accountApi struct {
	svc      account.Service
	notifSvc notification.Service
	sessions sessionstore.Store
	logger   core.Logger
}

func registerAccountAPI(
	g *echo.Group,
	jwt, revoked echo.MiddlewareFunc,
	svc account.Service,
	notifSvc notification.Service,
	sessions sessionstore.Store,
	logger core.Logger,
) {
	api := accountApi{
		svc:      svc,
		notifSvc: notifSvc,
		sessions: sessions,
		logger:   logger,
	}

	ag := g.Group("/accounts")

	// un-authed endpoints
	// TODO: rate limit `/password-reset`, `/reset-admin` & `/login`
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	ag.POST("/verify-email", api.verifyEmail)
	ag.POST("/resend-verification", api.resendVerification)
	ag.POST("/reset-admin", api.resetAdmin)

	// authed endpoints
	authed := ag.Group("", jwt, revoked)
	authed.POST("/logout", api.logout)
	authed.POST("/token-refresh", api.refreshToken)
	authed.GET("/destination", api.destination)
	authed.POST("", api.create, adminMiddleware())
	authed.GET("", api.query, adminMiddleware())
	authed.DELETE("", api.destroyMultiple, adminMiddleware())
	authed.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := authed.Group("/:id", ctxAccountOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/approve", api.approve, adminMiddleware())
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering account")
	}
	if res.Outcome == account.OutcomeAdminAlreadyRegistered {
		return ctx.JSON(http.StatusOK, res)
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case account.ErrInvalidCredentials:
			return ctx.JSON(http.StatusBadRequest, LoginErrorResponse{
				Error:         account.ErrInvalidCredentials.Error(),
				AdminRecovery: res.OfferAdminRecovery,
			})
		case account.ErrEmailNotVerified:
			return ctx.JSON(http.StatusBadRequest, LoginErrorResponse{
				Error:                account.ErrEmailNotVerified.Error(),
				VerificationRequired: true,
			})
		}
		return errors.Wrap(err, "logging in")
	}

	approved := api.svc.Approved(res.Account)
	token, err := GenerateToken(GetAccountClaims(res.Account, approved))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:   token,
		Account: res.Account,
		Destination: account.Route(account.SessionState{
			Account:         &res.Account,
			IsAuthenticated: true,
			IsApproved:      approved,
		}),
	})
}

// logout revokes the current token. It never fails: a dead token and a
// denylist fault both leave the client in the same logged-out state.
func (api *accountApi) logout(ctx echo.Context) error {
	if claims, err := getContextClaims(ctx); err == nil {
		revokeClaims(ctx, api.sessions, claims)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out."})
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data account.ResetAccountPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetAccountPassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *accountApi) verifyEmail(ctx echo.Context) error {
	var data account.VerifyAccountEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyAccountEmail")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	acct, err := api.svc.VerifyEmail(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "verifying email")
	}
	if !api.svc.Approved(acct) {
		return ctx.JSON(http.StatusOK, SuccessResponse{
			Success: "Email address confirmed. An administrator will review your registration shortly.",
		})
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Email address confirmed. You can now log in."})
}

func (api *accountApi) resendVerification(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.RequestEmailVerification(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == account.ErrNotFound) {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting email verification"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"a confirmation email will arrive in your inbox shortly.",
	})
}

// resetAdmin is the break-glass path offered on the login page when the
// designated admin cannot get in.
func (api *accountApi) resetAdmin(ctx echo.Context) error {
	acct, err := api.svc.ResetAdminAccount(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "resetting admin account")
	}
	// tokens issued against the old credentials must die with them
	if api.sessions != nil {
		ttl := core.Conf.Server.JWTRefreshExpirationDelta
		if err := api.sessions.RevokeAccount(ctx.Request().Context(), acct.ID, ttl); err != nil {
			ctx.Logger().Errorf("revoking admin sessions: %v", err)
		}
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "The administrator account has been restored. Log in with the fallback credentials and change the password.",
	})
}

// destination resolves the landing route for the authenticated session.
func (api *accountApi) destination(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	st := account.ResolveState(ctx.Request().Context(), api.svc, api.logger, sessionHandle(claims))
	return ctx.JSON(http.StatusOK, DestinationResponse{Destination: account.Route(st)})
}

// create registers an account on behalf of an administrator.
func (api *accountApi) create(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if err := api.svc.CheckEmailUniqueness(data.Email); err != nil {
		return err
	}

	acct, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating account")
	}
	return ctx.JSON(http.StatusCreated, acct)
}

func (api *accountApi) query(ctx echo.Context) error {
	filter := new(account.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []account.Account{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, accountSortFields...)

	accts, err := api.svc.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accts == nil {
		accts = []account.Account{}
	}
	return ctx.JSON(http.StatusOK, accts)
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	acct, ok := ctx.Get("object").(account.Account)
	if !ok {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) update(ctx echo.Context) error {
	acct, ok := ctx.Get("object").(account.Account)
	if !ok {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving object from context")
	}

	var data account.UpdateAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAccount")
	}

	ctxAcct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	if !ctxAcct.IsAdmin() {
		// `Approved`, `Role` and `Email` can only be changed by admin
		if data.Approved != nil || data.Role != "" || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(acct, api.svc); err != nil {
		return err
	}

	acct, err = api.svc.Update(ctx.Request().Context(), acct.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating account")
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) approve(ctx echo.Context) error {
	acct, ok := ctx.Get("object").(account.Account)
	if !ok {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving object from context")
	}

	acct, err := api.svc.Approve(ctx.Request().Context(), acct.ID)
	if err != nil {
		return errors.Wrap(err, "approving account")
	}

	if _, err := api.notifSvc.Notify(ctx.Request().Context(), acct.ID,
		"Registration approved", "An administrator approved your registration. You now have full access."); err != nil {
		api.logger.Error("notifying approved account", err)
	}
	return ctx.JSON(http.StatusOK, acct)
}

func (api *accountApi) destroy(ctx echo.Context) error {
	acct, ok := ctx.Get("object").(account.Account)
	if !ok {
		return errors.Wrap(errAcctNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxAccount cannot delete themselves
	ctxAcct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	if acct.ID == ctxAcct.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), acct.ID); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxAccount cannot delete themselves
	ctxAcct, err := getContextAccount(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, ctxAcct.ID); i < len(query.IDs) {
		if match := query.IDs[i]; ctxAcct.ID == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting accounts")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, account.Roles)
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.sessions)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func ctxAccountOrAdminMiddleware(svc account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxAcct, err := getContextAccount(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context account")
			}

			if ctx.Param("id") == ctxAcct.ID || ctxAcct.IsAdmin() {
				if acct, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", acct)
					return next(ctx)
				} else if errors.Cause(err) != account.ErrNotFound {
					return errors.Wrap(err, "finding account by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token       string              `json:"token"`
		Account     account.Account     `json:"account"`
		Destination account.Destination `json:"destination"`
	}

	// LoginErrorResponse carries the affordance flags the login page acts on.
	LoginErrorResponse struct {
		Error                string `json:"error"`
		AdminRecovery        bool   `json:"admin_recovery,omitempty"`
		VerificationRequired bool   `json:"verification_required,omitempty"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	DestinationResponse struct {
		Destination account.Destination `json:"destination"`
	}

	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (er *EmailRequest) Validate() error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return core.Validate.Struct(er)
}
