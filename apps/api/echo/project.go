package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/notification"
	"github.com/globalitacademy/yscip/core/project"
)

type projectApi struct {
	svc      project.Service
	notifSvc notification.Service
	logger   core.Logger
}

func registerProjectAPI(
	g *echo.Group,
	jwt, revoked echo.MiddlewareFunc,
	svc project.Service,
	notifSvc notification.Service,
	acctSvc account.Service,
	logger core.Logger,
) {
	api := projectApi{svc: svc, notifSvc: notifSvc, logger: logger}

	supervisors := roleMiddleware(account.RoleAdmin, account.RoleSupervisor, account.RoleProjectManager)

	tg := g.Group("/themes", jwt, revoked, approvedMiddleware(acctSvc, logger))
	tg.GET("", api.queryThemes)
	tg.POST("", api.createTheme, supervisors)

	tdg := tg.Group("/:id")
	tdg.GET("", api.retrieveTheme)
	tdg.PUT("", api.updateTheme, supervisors)
	tdg.DELETE("", api.destroyTheme, supervisors)
	tdg.GET("/groups", api.queryGroupsByTheme)

	gg := g.Group("/groups", jwt, revoked, approvedMiddleware(acctSvc, logger))
	gg.GET("", api.queryGroups)
	gg.POST("", api.createGroup, supervisors)

	gdg := gg.Group("/:id")
	gdg.GET("", api.retrieveGroup)
	gdg.DELETE("", api.destroyGroup, supervisors)
	gdg.POST("/members/:accountID", api.addGroupMember)
	gdg.DELETE("/members/:accountID", api.removeGroupMember)
}

// Theme handlers

func (api *projectApi) queryThemes(ctx echo.Context) error {
	var (
		thms []project.Theme
		err  error
	)
	if sup := ctx.QueryParam("supervisor"); sup != "" {
		thms, err = api.svc.QueryThemesBySupervisor(ctx.Request().Context(), sup)
	} else {
		thms, err = api.svc.QueryThemes(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying themes")
	}
	if thms == nil {
		thms = []project.Theme{}
	}
	return ctx.JSON(http.StatusOK, thms)
}

func (api *projectApi) createTheme(ctx echo.Context) error {
	var data project.NewTheme
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTheme")
	}

	// supervisors own the themes they propose
	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if clms.Role != account.RoleAdmin {
		data.SupervisorID = clms.Subject
	}

	if err := data.Validate(); err != nil {
		return err
	}

	thm, err := api.svc.CreateTheme(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating theme")
	}
	return ctx.JSON(http.StatusCreated, thm)
}

func (api *projectApi) retrieveTheme(ctx echo.Context) error {
	thm, err := api.svc.GetTheme(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == project.ErrThemeNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding theme by ID")
	}
	return ctx.JSON(http.StatusOK, thm)
}

func (api *projectApi) updateTheme(ctx echo.Context) error {
	thm, err := api.svc.GetTheme(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == project.ErrThemeNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding theme by ID")
	}

	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if clms.Role != account.RoleAdmin && thm.SupervisorID != clms.Subject {
		return errHttpForbidden
	}

	var data project.UpdateTheme
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTheme")
	}
	if err := data.Validate(thm); err != nil {
		return err
	}

	thm, err = api.svc.UpdateTheme(ctx.Request().Context(), thm.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating theme")
	}
	return ctx.JSON(http.StatusOK, thm)
}

func (api *projectApi) destroyTheme(ctx echo.Context) error {
	thm, err := api.svc.GetTheme(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == project.ErrThemeNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding theme by ID")
	}

	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if clms.Role != account.RoleAdmin && thm.SupervisorID != clms.Subject {
		return errHttpForbidden
	}

	if err := api.svc.DeleteThemes(ctx.Request().Context(), thm.ID); err != nil {
		return errors.Wrap(err, "deleting theme")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Group handlers

func (api *projectApi) queryGroups(ctx echo.Context) error {
	var (
		grps []project.Group
		err  error
	)
	switch {
	case ctx.QueryParam("theme") != "":
		grps, err = api.svc.QueryGroupsByTheme(ctx.Request().Context(), ctx.QueryParam("theme"))
	case ctx.QueryParam("member") != "":
		grps, err = api.svc.QueryGroupsByMember(ctx.Request().Context(), ctx.QueryParam("member"))
	default:
		clms, cerr := getContextClaims(ctx)
		if cerr != nil {
			return errors.Wrap(cerr, "getting context claims")
		}
		grps, err = api.svc.QueryGroupsByMember(ctx.Request().Context(), clms.Subject)
	}
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if grps == nil {
		grps = []project.Group{}
	}
	return ctx.JSON(http.StatusOK, grps)
}

func (api *projectApi) queryGroupsByTheme(ctx echo.Context) error {
	grps, err := api.svc.QueryGroupsByTheme(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying groups by theme")
	}
	if grps == nil {
		grps = []project.Group{}
	}
	return ctx.JSON(http.StatusOK, grps)
}

func (api *projectApi) createGroup(ctx echo.Context) error {
	var data project.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	grp, err := api.svc.CreateGroup(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == project.ErrThemeNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "theme_id", Error: err.Error()})
		}
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *projectApi) retrieveGroup(ctx echo.Context) error {
	grp, err := api.svc.GetGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == project.ErrGroupNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding group by ID")
	}
	return ctx.JSON(http.StatusOK, grp)
}

// addGroupMember lets students join a group themselves; supervisors and
// admins can place any account.
func (api *projectApi) addGroupMember(ctx echo.Context) error {
	accountID := ctx.Param("accountID")

	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if clms.Role == account.RoleStudent && accountID != clms.Subject {
		return errHttpForbidden
	}

	grp, err := api.svc.AddGroupMember(ctx.Request().Context(), ctx.Param("id"), accountID)
	if err != nil {
		switch errors.Cause(err) {
		case project.ErrGroupNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding group member")
	}

	if _, err := api.notifSvc.Notify(ctx.Request().Context(), accountID,
		"Added to project group", "You joined the project group "+grp.Name+"."); err != nil {
		api.logger.Error("notifying added group member", err)
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *projectApi) removeGroupMember(ctx echo.Context) error {
	accountID := ctx.Param("accountID")

	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if clms.Role == account.RoleStudent && accountID != clms.Subject {
		return errHttpForbidden
	}

	grp, err := api.svc.RemoveGroupMember(ctx.Request().Context(), ctx.Param("id"), accountID)
	if err != nil {
		switch errors.Cause(err) {
		case project.ErrGroupNotFound:
			return errHttpNotFound
		case project.ErrMemberMissing:
			return core.NewValidationError(err, core.FieldError{Field: "account_id", Error: err.Error()})
		}
		return errors.Wrap(err, "removing group member")
	}

	if _, err := api.notifSvc.Notify(ctx.Request().Context(), accountID,
		"Removed from project group", "You were removed from the project group "+grp.Name+"."); err != nil {
		api.logger.Error("notifying removed group member", err)
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *projectApi) destroyGroup(ctx echo.Context) error {
	if _, err := api.svc.GetGroup(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == project.ErrGroupNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding group by ID")
	}
	if err := api.svc.DeleteGroups(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}
