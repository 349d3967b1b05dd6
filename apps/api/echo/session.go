package echoapi

import (
	"net/http"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

type sessionApi struct {
	sessions   *registry
	validate   *validator.Validate
	translator ut.Translator
}

func registerSessionAPI(g *echo.Group, sessions *registry, validate *validator.Validate, translator ut.Translator) {
	api := sessionApi{
		sessions:   sessions,
		validate:   validate,
		translator: translator,
	}

	sg := g.Group("/sessions")
	sg.POST("", api.create)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.PUT("/key", api.selectKey)
	dg.POST("/statuses", api.setStatus)
	dg.POST("/mark-all", api.markAll)
	dg.POST("/auto-fill", api.autoFill)
	dg.POST("/refresh", api.refresh)
	dg.POST("/save", api.save)
	dg.GET("/diff", api.diff)
	dg.GET("/history", api.history)
}

func (api *sessionApi) session(ctx echo.Context) (*attendance.Session, error) {
	return api.sessions.get(ctx.Param("id"))
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data NewSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSessionRequest")
	}
	if !data.IsEmpty() {
		if err := data.Validate(api.validate, api.translator); err != nil {
			return err
		}
	}

	id, sess := api.sessions.create()
	if !data.IsEmpty() {
		// a brand new session has nothing to lose
		if err := sess.Select(ctx.Request().Context(), data.Key(), attendance.Always(true)); err != nil {
			api.sessions.delete(id)
			return errors.Wrap(err, "selecting session key")
		}
	}

	return ctx.JSON(http.StatusCreated, SessionResponse{ID: id, View: sess.View("")})
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{ID: ctx.Param("id"), View: sess.View(ctx.QueryParam("search"))})
}

func (api *sessionApi) selectKey(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data KeyRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to KeyRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	if err = sess.Select(ctx.Request().Context(), data.Key(), attendance.Always(data.Confirm)); err != nil {
		return errors.Wrap(err, "selecting session key")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{ID: ctx.Param("id"), View: sess.View("")})
}

func (api *sessionApi) setStatus(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	if err = sess.SetStatus(data.StudentID, attendance.Status(data.Status)); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{ID: ctx.Param("id"), View: sess.View("")})
}

func (api *sessionApi) markAll(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data MarkAllRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAllRequest")
	}
	if err = data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	if err = sess.MarkAll(attendance.Status(data.Status)); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{ID: ctx.Param("id"), View: sess.View("")})
}

func (api *sessionApi) autoFill(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	filled, err := sess.AutoFill()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, AutoFillResponse{Filled: filled, View: sess.View("")})
}

func (api *sessionApi) refresh(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data ConfirmRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}

	if err = sess.Refresh(ctx.Request().Context(), attendance.Always(data.Confirm)); err != nil {
		return errors.Wrap(err, "refreshing session")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{ID: ctx.Param("id"), View: sess.View("")})
}

func (api *sessionApi) save(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data ConfirmRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}

	receipt, err := sess.Save(ctx.Request().Context(), attendance.Always(data.Confirm))
	if err != nil {
		return errors.Wrap(err, "saving session")
	}
	return ctx.JSON(http.StatusOK, SaveResponse{Receipt: receipt, View: sess.View("")})
}

func (api *sessionApi) diff(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, DiffResponse{Dirty: sess.Dirty(), Diff: sess.Diff()})
}

func (api *sessionApi) history(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	receipts, err := sess.History(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing save history")
	}
	return ctx.JSON(http.StatusOK, receipts)
}

// destroy is the unload guard: unsaved edits are only dropped with `?confirm=true`.
func (api *sessionApi) destroy(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var confirm bool
	if v := ctx.QueryParam("confirm"); v != "" {
		if confirm, err = strconv.ParseBool(v); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "confirm", Error: "confirm must be a boolean"})
		}
	}

	if err = sess.Close(ctx.Request().Context(), attendance.Always(confirm)); err != nil {
		return err
	}
	api.sessions.delete(ctx.Param("id"))
	return ctx.NoContent(http.StatusNoContent)
}
