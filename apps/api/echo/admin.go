package echoapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/notification"
	"github.com/trezcool/mainino/core/payment"
)

const dateLayout = "2006-01-02"

// registerAdminAPI mounts the staff-only management endpoints.
func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	ag := g.Group("/admin", jwt, adminMiddleware())

	registerPeopleAdminAPI(ag, s)

	api := adminApi{server: s}

	gg := ag.Group("/groups")
	gg.POST("", api.createGroup)
	gg.GET("", api.queryGroups)
	gg.GET("/:id", api.retrieveGroup)
	gg.POST("/:id/archive", api.archiveGroup)
	gg.POST("/:id/students", api.enrollStudent)

	ag.POST("/attendance", api.recordAttendance)
	ag.POST("/payments", api.recordPayment)
	ag.POST("/notifications", api.createNotification)
}

type adminApi struct {
	server *Server
}

func (api *adminApi) createGroup(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.server.deps.Validate); err != nil {
		return err
	}

	g, err := api.server.deps.GroupSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return jsonData(ctx, http.StatusCreated, g)
}

func (api *adminApi) queryGroups(ctx echo.Context) error {
	groups, err := api.server.deps.GroupSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return jsonData(ctx, http.StatusOK, groups)
}

func (api *adminApi) retrieveGroup(ctx echo.Context) error {
	g, err := api.server.deps.GroupSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding group by ID")
	}
	return jsonData(ctx, http.StatusOK, g)
}

func (api *adminApi) archiveGroup(ctx echo.Context) error {
	if err := api.server.deps.GroupSvc.Archive(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "archiving group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) enrollStudent(ctx echo.Context) error {
	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := api.server.deps.Validate.Struct(&data); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if _, err := api.server.deps.PeopleSvc.GetStudentByID(reqCtx, data.StudentID); err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	if err := api.server.deps.GroupSvc.Enroll(reqCtx, ctx.Param("id"), data.StudentID); err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) recordAttendance(ctx echo.Context) error {
	var data RecordAttendanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordAttendanceRequest")
	}
	if err := api.server.deps.Validate.Struct(&data); err != nil {
		return err
	}
	date, err := time.Parse(dateLayout, data.Date)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "invalid date; expected YYYY-MM-DD"})
	}

	rec, err := api.server.deps.AttendanceSvc.Record(ctx.Request().Context(), attendance.Record{
		ID:        uuid.New().String(),
		StudentID: data.StudentID,
		Date:      date.UTC(),
		Status:    attendance.Status(data.Status),
		Group:     attendance.GroupInfo{ID: data.GroupID},
		Session: attendance.SessionInfo{
			StartTime: data.StartTime,
			EndTime:   data.EndTime,
			Room:      data.Room,
		},
	})
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return jsonData(ctx, http.StatusCreated, rec)
}

func (api *adminApi) recordPayment(ctx echo.Context) error {
	var data RecordPaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordPaymentRequest")
	}
	if err := api.server.deps.Validate.Struct(&data); err != nil {
		return err
	}
	date, err := time.Parse(dateLayout, data.Date)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "invalid date; expected YYYY-MM-DD"})
	}

	p, err := api.server.deps.PaymentSvc.Record(ctx.Request().Context(), payment.Payment{
		ID:        uuid.New().String(),
		StudentID: data.StudentID,
		Amount:    data.Amount,
		Method:    data.Method,
		Date:      date.UTC(),
		Status:    payment.Status(data.Status),
		Note:      data.Note,
	})
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return jsonData(ctx, http.StatusCreated, p)
}

func (api *adminApi) createNotification(ctx echo.Context) error {
	var data notification.NewNotification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}
	if err := api.server.deps.Validate.Struct(&data); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if data.RelatedStudentID != "" {
		s, err := api.server.deps.PeopleSvc.GetStudentByID(reqCtx, data.RelatedStudentID)
		if err != nil {
			return errors.Wrap(err, "finding related student by ID")
		}
		data.RelatedStudentName = s.Name + " " + s.Surname
	}

	n, err := api.server.deps.NotificationSvc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}
	return jsonData(ctx, http.StatusCreated, n)
}

type (
	EnrollRequest struct {
		StudentID string `json:"student_id" validate:"required"`
	}

	RecordAttendanceRequest struct {
		StudentID string `json:"student_id" validate:"required"`
		GroupID   string `json:"group_id" validate:"required"`
		Date      string `json:"date" validate:"required"`
		StartTime string `json:"start_time" validate:"required,clocktime"`
		EndTime   string `json:"end_time" validate:"required,clocktime"`
		Room      string `json:"room"`
		Status    string `json:"status" validate:"required,oneof=present absent late"`
	}

	RecordPaymentRequest struct {
		StudentID string  `json:"student_id" validate:"required"`
		Amount    float64 `json:"amount" validate:"required,gt=0"`
		Method    string  `json:"method"`
		Date      string  `json:"date" validate:"required"`
		Status    string  `json:"status" validate:"required,oneof=paid pending overdue"`
		Note      string  `json:"note"`
	}
)
