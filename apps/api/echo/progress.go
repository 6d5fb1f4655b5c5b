package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/progress"
)

const studentIDParam = "student_id"

type progressApi struct {
	agg *progress.Aggregator
}

func registerProgressAPI(e *echo.Echo, auth echo.MiddlewareFunc, agg *progress.Aggregator) {
	api := progressApi{agg: agg}

	e.GET("/progress", api.quizProgress, auth)
	e.GET("/weekly_progress", api.weeklyProgress, auth)
	e.GET("/game/progress", api.gameProgress, auth)
	e.GET("/compare_students", api.compareStudents, auth, roleMiddleware(account.RoleParent))
}

// targetStudent returns the viewer and the student whose progress is requested.
// Students always get their own id; parents must name one of their children with ?student_id.
func targetStudent(ctx echo.Context) (progress.Viewer, int, error) {
	viewer, err := contextViewer(ctx)
	if err != nil {
		return viewer, 0, err
	}
	if viewer.Role == account.RoleStudent {
		return viewer, viewer.ID, nil
	}

	raw := ctx.QueryParam(studentIDParam)
	if raw == "" {
		return viewer, 0, core.NewFieldError(studentIDParam, "this field is required")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return viewer, 0, core.NewFieldError(studentIDParam, "must be an integer")
	}
	return viewer, id, nil
}

// Handlers

func (api *progressApi) quizProgress(ctx echo.Context) error {
	viewer, studentID, err := targetStudent(ctx)
	if err != nil {
		return err
	}
	quizzes, err := api.agg.LatestAndHighestPerQuiz(ctx.Request().Context(), viewer, studentID)
	if err != nil {
		return errors.Wrap(err, "aggregating quiz progress")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"progress": quizzes})
}

func (api *progressApi) weeklyProgress(ctx echo.Context) error {
	viewer, studentID, err := targetStudent(ctx)
	if err != nil {
		return err
	}
	week, err := api.agg.WeeklyQuizProgress(ctx.Request().Context(), viewer, studentID)
	if err != nil {
		return errors.Wrap(err, "aggregating weekly progress")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"weeklyProgress": week})
}

func (api *progressApi) gameProgress(ctx echo.Context) error {
	viewer, studentID, err := targetStudent(ctx)
	if err != nil {
		return err
	}
	subjects, err := api.agg.GameScoresBySubject(ctx.Request().Context(), viewer, studentID)
	if err != nil {
		return errors.Wrap(err, "aggregating game progress")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"subjects": subjects})
}

func (api *progressApi) compareStudents(ctx echo.Context) error {
	viewer, err := contextViewer(ctx)
	if err != nil {
		return err
	}

	// ?student_id=1&student_id=2 or ?student_id=1,2
	var ids []int
	for _, val := range ctx.QueryParams()[studentIDParam] {
		for _, raw := range strings.Split(val, ",") {
			if raw = strings.TrimSpace(raw); raw == "" {
				continue
			}
			id, err := strconv.Atoi(raw)
			if err != nil {
				return core.NewFieldError(studentIDParam, "must be a list of integers")
			}
			ids = append(ids, id)
		}
	}

	students, err := api.agg.CrossChildComparison(ctx.Request().Context(), viewer, ids...)
	if err != nil {
		return errors.Wrap(err, "comparing students")
	}
	return ctx.JSON(http.StatusOK, StudentsResponse{Students: students})
}
