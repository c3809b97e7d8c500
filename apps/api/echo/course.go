package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/course"
)

type courseApi struct {
	svc course.Service
}

func registerCourseAPI(
	g *echo.Group,
	jwt, revoked echo.MiddlewareFunc,
	svc course.Service,
	acctSvc account.Service,
	logger core.Logger,
) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses", jwt, revoked, approvedMiddleware(acctSvc, logger))
	cg.GET("", api.query)
	cg.POST("", api.create, roleMiddleware(account.RoleAdmin, account.RoleLecturer, account.RoleInstructor))

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleMiddleware(account.RoleAdmin, account.RoleLecturer, account.RoleInstructor))
	dg.DELETE("", api.destroy, adminMiddleware())
}

func (api *courseApi) query(ctx echo.Context) error {
	var (
		crss []course.Course
		err  error
	)
	switch {
	case ctx.QueryParam("lecturer") != "":
		crss, err = api.svc.QueryByLecturer(ctx.Request().Context(), ctx.QueryParam("lecturer"))
	case ctx.QueryParam("department") != "":
		crss, err = api.svc.QueryByDepartment(ctx.Request().Context(), ctx.QueryParam("department"))
	default:
		crss, err = api.svc.QueryAll(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if crss == nil {
		crss = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, crss)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	// lecturers always own the courses they create
	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if clms.Role == account.RoleLecturer || clms.Role == account.RoleInstructor {
		data.LecturerID = clms.Subject
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by ID")
	}

	// lecturers can only touch their own courses
	clms, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if (clms.Role == account.RoleLecturer || clms.Role == account.RoleInstructor) && crs.LecturerID.String != clms.Subject {
		return errHttpForbidden
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(crs); err != nil {
		return err
	}

	crs, err = api.svc.Update(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by ID")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}
