package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
)

type proctorAPI struct {
	svc      *exam.Service
	validate *validator.Validate
}

func registerProctorAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *exam.Service, validate *validator.Validate) {
	api := proctorAPI{svc: svc, validate: validate}
	owner := roomOwnerMiddleware(svc)

	rooms := g.Group("/rooms")

	// instructor dashboard
	rooms.POST("", api.openRoom, jwt)
	rooms.GET("", api.roomQuery, jwt)
	rooms.GET("/:room/dashboard", api.dashboard, jwt, owner)
	rooms.POST("/:room/export", api.exportRoom, jwt, owner)
	rooms.DELETE("/:room", api.purgeRoom, jwt, owner)

	// student client
	rooms.POST("/:room/students", api.enterRoom)
	rooms.GET("/:room/students/:student", api.sessionDetail)
	rooms.POST("/:room/students/:student/finish", api.finish)
	rooms.POST("/:room/students/:student/frames", api.processFrame)
	rooms.POST("/:room/violations", api.reportViolation)
	rooms.POST("/:room/heartbeats", api.heartbeat)
}

func sessionKey(ctx echo.Context) proctor.SessionKey {
	return proctor.SessionKey{StudentID: ctx.Param("student"), RoomID: ctx.Param("room")}
}

type decisionResponse struct {
	Decision proctor.Decision `json:"decision"`
}

// Rooms

func (api proctorAPI) openRoom(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var nr proctor.NewRoom
	if err = ctx.Bind(&nr); err != nil {
		return err
	}
	nr.InstructorID = claims.Subject
	if nr.InstructorEmail == "" {
		nr.InstructorEmail = claims.Email
	}
	if err = nr.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.OpenRoom(nr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, room)
}

// roomQuery lists the rooms owned by the requesting instructor.
func (api proctorAPI) roomQuery(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rooms, err := api.svc.QueryRooms()
	if err != nil {
		return err
	}
	owned := make([]proctor.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.InstructorID == claims.Subject {
			owned = append(owned, room)
		}
	}
	return ctx.JSON(http.StatusOK, owned)
}

func (api proctorAPI) dashboard(ctx echo.Context) error {
	room, err := getContextRoom(ctx)
	if err != nil {
		return err
	}
	dash, err := api.svc.Dashboard(room.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api proctorAPI) exportRoom(ctx echo.Context) error {
	room, err := getContextRoom(ctx)
	if err != nil {
		return err
	}
	archive, err := api.svc.Finalize(ctx.Request().Context(), room.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, archive)
}

func (api proctorAPI) purgeRoom(ctx echo.Context) error {
	room, err := getContextRoom(ctx)
	if err != nil {
		return err
	}
	archive, err := api.svc.PurgeRoom(ctx.Request().Context(), room.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, archive)
}

// Students

func (api proctorAPI) enterRoom(ctx echo.Context) error {
	var ns proctor.NewSession
	if err := ctx.Bind(&ns); err != nil {
		return err
	}
	ns.RoomID = ctx.Param("room")
	if err := ns.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.EnterRoom(ns)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api proctorAPI) sessionDetail(ctx echo.Context) error {
	sess, err := api.svc.GetSession(sessionKey(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api proctorAPI) finish(ctx echo.Context) error {
	sess, err := api.svc.Finish(sessionKey(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api proctorAPI) reportViolation(ctx echo.Context) error {
	var vr proctor.ViolationReport
	if err := ctx.Bind(&vr); err != nil {
		return err
	}
	vr.RoomID = ctx.Param("room")
	if err := vr.Validate(api.validate); err != nil {
		return err
	}

	decision, err := api.svc.ReportViolation(vr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, decisionResponse{Decision: decision})
}

func (api proctorAPI) processFrame(ctx echo.Context) error {
	var fr frameRequest
	if err := ctx.Bind(&fr); err != nil {
		return err
	}

	decision, err := api.svc.ProcessFrame(sessionKey(ctx), fr.frame())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, decisionResponse{Decision: decision})
}

func (api proctorAPI) heartbeat(ctx echo.Context) error {
	var hb proctor.Heartbeat
	if err := ctx.Bind(&hb); err != nil {
		return err
	}
	hb.RoomID = ctx.Param("room")
	if err := hb.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Heartbeat(hb); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
