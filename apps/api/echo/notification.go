package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core/notification"
)

type notificationApi struct {
	svc notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt, revoked echo.MiddlewareFunc, svc notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications", jwt, revoked)
	ng.GET("", api.query)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
	ng.DELETE("/:id", api.destroy)
}

// query returns the authenticated account's notifications, newest first.
func (api *notificationApi) query(ctx echo.Context) error {
	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	notifs, err := api.svc.QueryByAccount(ctx.Request().Context(), clms.Subject)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	notif, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding notification by ID")
	}
	// never leak other accounts' notifications
	if notif.AccountID != clms.Subject {
		return errHttpNotFound
	}

	notif, err = api.svc.MarkRead(ctx.Request().Context(), notif.ID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, notif)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.MarkAllRead(ctx.Request().Context(), clms.Subject); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "All notifications marked as read."})
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	notif, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding notification by ID")
	}
	if notif.AccountID != clms.Subject {
		return errHttpNotFound
	}

	if err := api.svc.Delete(ctx.Request().Context(), notif.ID); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}
