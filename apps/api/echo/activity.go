package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/activity"
	"github.com/trezcool/jifunze/services/metrics"
)

type activityApi struct {
	rec      *activity.Recorder
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func registerActivityAPI(
	e *echo.Echo,
	auth echo.MiddlewareFunc,
	rec *activity.Recorder,
	m *metrics.Metrics,
	validate *validator.Validate,
) {
	api := activityApi{
		rec:      rec,
		metrics:  m,
		validate: validate,
	}
	studentOnly := roleMiddleware(account.RoleStudent)

	// un-authed: the student is named in the body
	e.POST("/submit-quiz", api.submitQuiz)

	e.POST("/game/submit", api.submitGame, auth, studentOnly)
	e.POST("/track-duration/:audiobookId", api.trackDuration, auth, studentOnly)
	e.GET("/tracks", api.tracks, auth, studentOnly)

	// :id is the audiobook when listing or adding, the bookmark when deleting
	e.POST("/bookmarks/:id", api.addBookmark, auth, studentOnly)
	e.GET("/bookmarks/:id", api.bookmarks, auth, studentOnly)
	e.DELETE("/bookmarks/:id", api.deleteBookmark, auth, studentOnly)
}

func (api *activityApi) observe(kind string, err error) {
	outcome := metrics.Outcome(err)
	if errors.Cause(err) == activity.ErrDuplicateAttempt {
		outcome = metrics.OutcomeConflict
	}
	api.metrics.ActivityRecords.WithLabelValues(kind, outcome).Inc()
}

// Handlers

func (api *activityApi) submitQuiz(ctx echo.Context) error {
	var data activity.NewQuizAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuizAttempt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	attempt, err := api.rec.RecordQuizAttempt(ctx.Request().Context(), data)
	api.observe("quiz", err)
	if err != nil {
		return errors.Wrap(err, "recording quiz attempt")
	}
	return ctx.JSON(http.StatusOK, QuizSubmitResponse{
		Message:       "Quiz submitted successfully.",
		AttemptNumber: attempt.AttemptNumber,
	})
}

func (api *activityApi) submitGame(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data activity.NewGameScore
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGameScore")
	}
	if data.StudentID == 0 {
		data.StudentID = claims.ID
	}
	if data.StudentID != claims.ID {
		return errHttpForbidden
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	score, err := api.rec.RecordGameScore(ctx.Request().Context(), data)
	api.observe("game", err)
	if err != nil {
		return errors.Wrap(err, "recording game score")
	}
	return ctx.JSON(http.StatusOK, GameSubmitResponse{Success: true, AttemptNumber: score.AttemptNumber})
}

func (api *activityApi) trackDuration(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	audiobookID, err := pathID(ctx, "audiobookId")
	if err != nil {
		return err
	}

	var data activity.TrackDuration
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TrackDuration")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	track, created, err := api.rec.RecordTrackDuration(ctx.Request().Context(), claims.ID, audiobookID, *data.Duration)
	api.observe("track", err)
	if err != nil {
		return errors.Wrap(err, "recording track duration")
	}
	if created {
		return ctx.JSON(http.StatusCreated, TrackResponse{Message: "Track duration created.", Duration: track.Duration})
	}
	return ctx.JSON(http.StatusOK, TrackResponse{Message: "Track duration updated.", Duration: track.Duration})
}

func (api *activityApi) tracks(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	tracks, err := api.rec.Tracks(ctx.Request().Context(), claims.ID)
	if err != nil {
		return errors.Wrap(err, "querying tracks")
	}
	if tracks == nil {
		tracks = []activity.Track{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"tracks": tracks})
}

func (api *activityApi) addBookmark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	audiobookID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data activity.NewBookmark
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBookmark")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	bookmark, err := api.rec.AddBookmark(ctx.Request().Context(), claims.ID, audiobookID, data)
	api.observe("bookmark", err)
	if err != nil {
		return errors.Wrap(err, "adding bookmark")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"bookmark": bookmark})
}

func (api *activityApi) bookmarks(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	audiobookID, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	bookmarks, err := api.rec.Bookmarks(ctx.Request().Context(), claims.ID, audiobookID)
	if err != nil {
		return errors.Wrap(err, "querying bookmarks")
	}
	if bookmarks == nil {
		bookmarks = []activity.Bookmark{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"bookmarks": bookmarks})
}

func (api *activityApi) deleteBookmark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return activity.ErrBookmarkNotFound
	}

	if err = api.rec.DeleteBookmark(ctx.Request().Context(), claims.ID, id); err != nil {
		return errors.Wrap(err, "deleting bookmark")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// pathID parses a positive integer path parameter.
func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, core.NewFieldError(name, "must be a positive integer")
	}
	return id, nil
}

type (
	QuizSubmitResponse struct {
		Message       string `json:"message"`
		AttemptNumber int    `json:"attempt_number"`
	}

	GameSubmitResponse struct {
		Success       bool `json:"success"`
		AttemptNumber int  `json:"attempt_number"`
	}

	TrackResponse struct {
		Message  string `json:"message"`
		Duration int64  `json:"duration"`
	}
)
