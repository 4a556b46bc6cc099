package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
)

const roomContextKey = "room"

// roomOwnerMiddleware only lets the instructor owning the :room through, and stores the room in the context.
func roomOwnerMiddleware(svc *exam.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			room, err := svc.GetRoom(ctx.Param("room"))
			if err != nil {
				return err
			}
			if room.InstructorID != claims.Subject {
				return errHttpForbidden
			}
			ctx.Set(roomContextKey, room)
			return next(ctx)
		}
	}
}

func getContextRoom(ctx echo.Context) (proctor.Room, error) {
	if room, ok := ctx.Get(roomContextKey).(proctor.Room); ok {
		return room, nil
	}
	return proctor.Room{}, errors.New("room not found in echo.Context")
}
