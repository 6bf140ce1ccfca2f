package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/people"
)

type authApi struct {
	server *Server
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := authApi{server: s}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.server.deps.Validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Username, data.Password, api.server.deps.PeopleSvc, api.server.deps.Conf)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims, api.server.deps.Conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return jsonData(ctx, http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.server.deps.Validate); err != nil {
		return err
	}

	if err := api.server.deps.PeopleSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == people.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return jsonData(ctx, http.StatusOK, MessageResponse{
		Message: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data people.ResetParentPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetParentPassword")
	}
	if err := data.Validate(api.server.deps.Validate); err != nil {
		return err
	}

	if _, err := api.server.deps.PeopleSvc.ConfirmPasswordReset(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return jsonData(ctx, http.StatusOK, MessageResponse{Message: "Password has been reset with the new password."})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.server.deps.PeopleSvc, api.server.deps.Conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return jsonData(ctx, http.StatusOK, LoginResponse{Token: token})
}

type peopleApi struct {
	server *Server
}

func registerPeopleAdminAPI(ag *echo.Group, s *Server) {
	api := peopleApi{server: s}

	pg := ag.Group("/parents")
	pg.POST("", api.createParent)
	pg.GET("", api.queryParents)

	sg := ag.Group("/students")
	sg.POST("", api.createStudent)
	sg.GET("", api.queryStudents)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent)
	sg.DELETE("", api.destroyStudents)

	ag.POST("/teachers", api.createTeacher)
}

func (api *peopleApi) createParent(ctx echo.Context) error {
	var data people.NewParent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParent")
	}
	if err := data.Validate(api.server.deps.Validate); err != nil {
		return err
	}

	p, err := api.server.deps.PeopleSvc.CreateParent(ctx.Request().Context(), data)
	if err != nil {
		if isUniquenessErr(err) {
			return core.NewValidationError(errors.Cause(err))
		}
		return errors.Wrap(err, "creating parent")
	}
	return jsonData(ctx, http.StatusCreated, p)
}

func (api *peopleApi) queryParents(ctx echo.Context) error {
	parents, err := api.server.deps.PeopleSvc.QueryAllParents(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	if parents == nil {
		parents = []people.Parent{}
	}
	return jsonData(ctx, http.StatusOK, parents)
}

func (api *peopleApi) createStudent(ctx echo.Context) error {
	var data people.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.server.deps.Validate); err != nil {
		return err
	}

	s, pwd, err := api.server.deps.PeopleSvc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		if isUniquenessErr(err) {
			return core.NewValidationError(errors.Cause(err))
		}
		return errors.Wrap(err, "creating student")
	}
	// the generated password is returned once; it is never stored in clear
	return jsonData(ctx, http.StatusCreated, NewStudentResponse{Student: s, GeneratedPassword: pwd})
}

func (api *peopleApi) queryStudents(ctx echo.Context) error {
	filter := people.QueryFilter{Search: ctx.QueryParam("search")}
	if val := ctx.QueryParam("is_active"); val != "" {
		if active, err := strconv.ParseBool(val); err == nil {
			filter.IsActive = &active
		}
	}
	if val := ctx.QueryParam("created_from"); val != "" {
		if t, err := time.Parse("2006-01-02", val); err == nil {
			filter.CreatedFrom = t
		}
	}
	if val := ctx.QueryParam("created_to"); val != "" {
		if t, err := time.Parse("2006-01-02", val); err == nil {
			filter.CreatedTo = t
		}
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Orderings = ordering.Orderings

	students, err := api.server.deps.PeopleSvc.FilterStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []people.Student{}
	}
	return jsonData(ctx, http.StatusOK, students)
}

func (api *peopleApi) retrieveStudent(ctx echo.Context) error {
	s, err := api.server.deps.PeopleSvc.GetStudentByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	return jsonData(ctx, http.StatusOK, s)
}

func (api *peopleApi) updateStudent(ctx echo.Context) error {
	var data people.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.server.deps.Validate); err != nil {
		return err
	}

	s, err := api.server.deps.PeopleSvc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return jsonData(ctx, http.StatusOK, s)
}

func (api *peopleApi) destroyStudents(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.server.deps.PeopleSvc.DeleteStudents(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *peopleApi) createTeacher(ctx echo.Context) error {
	var data NewTeacherRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacherRequest")
	}
	if err := api.server.deps.Validate.Struct(&data); err != nil {
		return err
	}

	t, err := api.server.deps.PeopleSvc.CreateTeacher(ctx.Request().Context(), people.Teacher{
		Name:     data.Name,
		Surname:  data.Surname,
		Email:    data.Email,
		IsActive: true,
	})
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return jsonData(ctx, http.StatusCreated, t)
}

func isUniquenessErr(err error) bool {
	cause := errors.Cause(err)
	return cause == people.ErrUsernameExists || cause == people.ErrEmailExists
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	NewStudentResponse struct {
		people.Student
		GeneratedPassword string `json:"generated_password"`
	}

	NewTeacherRequest struct {
		Name    string `json:"name" validate:"required"`
		Surname string `json:"surname" validate:"required"`
		Email   string `json:"email" validate:"omitempty,email"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
