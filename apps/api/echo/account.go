package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/session"
	"github.com/trezcool/jifunze/services/metrics"
)

type accountApi struct {
	svc      *account.Service
	sessions *session.Manager
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func registerAccountAPI(
	e *echo.Echo,
	auth echo.MiddlewareFunc,
	svc *account.Service,
	sessions *session.Manager,
	m *metrics.Metrics,
	validate *validator.Validate,
) {
	api := accountApi{
		svc:      svc,
		sessions: sessions,
		metrics:  m,
		validate: validate,
	}
	parentOnly := roleMiddleware(account.RoleParent)

	// un-authed endpoints
	// TODO: rate limit `/login`, `/forgot-password` & `/reset-password`
	e.POST("/register", api.register)
	e.POST("/login", api.login)
	e.POST("/forgot-password", api.forgotPassword)
	e.POST("/reset-password", api.resetPassword)

	// authed endpoints
	e.GET("/dashboard", api.dashboard, auth)
	e.PUT("/students/:id", api.updateStudent, auth)
	e.GET("/parent/children", api.children, auth, parentOnly)
	e.PUT("/parent/profile", api.updateParent, auth, parentOnly)
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data account.Registration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Registration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.Register(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "Student registered successfully."})
}

func (api *accountApi) login(ctx echo.Context) error {
	var data account.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	principal, err := api.svc.Authenticate(ctx.Request().Context(), data)
	api.metrics.LoginAttempts.WithLabelValues(
		string(data.Role),
		metrics.Outcome(err, account.ErrEmailNotRegistered, account.ErrIncorrectPassword),
	).Inc()
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}

	token, _, err := api.sessions.Issue(principal)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful.",
		Token:   token,
		Role:    principal.PrincipalRole(),
	})
}

func (api *accountApi) forgotPassword(ctx echo.Context) error {
	var data account.PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	api.metrics.PasswordResets.WithLabelValues("request", metrics.Outcome(err, account.ErrEmailNotRegistered)).Inc()
	if err != nil {
		return errors.Wrap(err, "requesting password reset")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "OTP sent to your email."})
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data account.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.ResetPassword(ctx.Request().Context(), data)
	api.metrics.PasswordResets.WithLabelValues("confirm", metrics.Outcome(err, account.ErrInvalidOTP)).Inc()
	if err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset successfully."})
}

func (api *accountApi) dashboard(ctx echo.Context) error {
	principal, err := api.contextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: principal})
}

func (api *accountApi) updateStudent(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return account.ErrNotFound
	}

	var data account.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := api.contextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	student, err := api.svc.UpdateStudent(ctx.Request().Context(), actor, id, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: student})
}

func (api *accountApi) updateParent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data account.UpdateParent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateParent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	parent, err := api.svc.UpdateParent(ctx.Request().Context(), claims.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating parent")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: parent})
}

func (api *accountApi) children(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.Children(ctx.Request().Context(), claims.ID)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	return ctx.JSON(http.StatusOK, StudentsResponse{Students: students})
}

// contextPrincipal loads the account the request token was issued to.
func (api *accountApi) contextPrincipal(ctx echo.Context) (account.Principal, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, err
	}
	return api.svc.GetPrincipal(ctx.Request().Context(), claims.Role, claims.ID)
}

type (
	MessageResponse struct {
		Message string `json:"message"`
	}

	LoginResponse struct {
		Message string       `json:"message"`
		Token   string       `json:"token"`
		Role    account.Role `json:"role"`
	}

	UserResponse struct {
		User interface{} `json:"user"`
	}

	StudentsResponse struct {
		Students interface{} `json:"students"`
	}
)
