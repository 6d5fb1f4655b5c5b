package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	. "github.com/trezcool/jifunze/apps/api/echo"
	"github.com/trezcool/jifunze/core/activity"
	"github.com/trezcool/jifunze/tests"
)

func Test_activityApi_submitQuiz(t *testing.T) {
	app := setup(t)
	bea := testutil.CreateParent(t, app.accRepo, "Bea", "b@x.com", "")
	ann := testutil.CreateStudent(t, app.accRepo, "Ann", "a@x.com", "p1", 9, 3, bea.ID)

	submitted := func(n int) []byte {
		return marchallObj(t, QuizSubmitResponse{Message: "Quiz submitted successfully.", AttemptNumber: n})
	}

	tests := []httpTest{
		{
			name:     "first attempt",
			body:     marchallObj(t, echo.Map{"student_id": ann.ID, "quiz_id": 5, "score": 80}),
			wantCode: http.StatusOK,
			wantData: submitted(1),
		},
		{
			name:     "second attempt",
			body:     marchallObj(t, echo.Map{"student_id": ann.ID, "quiz_id": 5, "score": 95.5}),
			wantCode: http.StatusOK,
			wantData: submitted(2),
		},
		{
			name:     "other quiz",
			body:     marchallObj(t, echo.Map{"student_id": ann.ID, "quiz_id": 6, "score": 0}),
			wantCode: http.StatusOK,
			wantData: submitted(1),
		},
		{
			name:     "missing student_id",
			body:     marchallObj(t, echo.Map{"quiz_id": 5, "score": 80}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"student_id": "student_id is required"}),
		},
		{
			name:     "unknown student",
			body:     marchallObj(t, echo.Map{"student_id": 999, "quiz_id": 5, "score": 80}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"student_id": "student not found"}),
		},
		{
			name:     "missing score",
			body:     marchallObj(t, echo.Map{"student_id": ann.ID, "quiz_id": 5}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"score": "this field is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/submit-quiz"
			app.serve(t, tt)
		})
	}
}

func Test_activityApi_submitGame(t *testing.T) {
	app := setup(t)
	bea := testutil.CreateParent(t, app.accRepo, "Bea", "b@x.com", "")
	ann := testutil.CreateStudent(t, app.accRepo, "Ann", "a@x.com", "p1", 9, 3, bea.ID)
	dan := testutil.CreateStudent(t, app.accRepo, "Dan", "d@x.com", "p1", 7, 2, bea.ID)
	annToken := app.getToken(t, &ann)

	tests := []httpTest{
		{
			name:     "student from token",
			body:     marchallObj(t, echo.Map{"subject_id": 1, "game_id": 2, "score": 10}),
			token:    annToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, GameSubmitResponse{Success: true, AttemptNumber: 1}),
		},
		{
			name:     "explicit student",
			body:     marchallObj(t, echo.Map{"student_id": ann.ID, "subject_id": 1, "game_id": 2, "score": 20}),
			token:    annToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, GameSubmitResponse{Success: true, AttemptNumber: 2}),
		},
		{
			name:     "other student",
			body:     marchallObj(t, echo.Map{"student_id": dan.ID, "subject_id": 1, "game_id": 2, "score": 20}),
			token:    annToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "parent token",
			body:     marchallObj(t, echo.Map{"student_id": ann.ID, "subject_id": 1, "game_id": 2, "score": 20}),
			token:    app.getToken(t, &bea),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "missing ids",
			body:     marchallObj(t, echo.Map{"score": 20}),
			token:    annToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{
				"subject_id": "this field is required",
				"game_id":    "this field is required",
			}),
		},
		{
			name:     "auth required",
			body:     marchallObj(t, echo.Map{"subject_id": 1, "game_id": 2, "score": 10}),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/game/submit"
			app.serve(t, tt)
		})
	}
}

func Test_activityApi_trackDuration(t *testing.T) {
	app := setup(t)
	bea := testutil.CreateParent(t, app.accRepo, "Bea", "b@x.com", "")
	ann := testutil.CreateStudent(t, app.accRepo, "Ann", "a@x.com", "p1", 9, 3, bea.ID)
	annToken := app.getToken(t, &ann)

	tests := []httpTest{
		{
			name:     "created",
			path:     "/track-duration/4",
			body:     marchallObj(t, echo.Map{"duration": 30}),
			wantCode: http.StatusCreated,
			wantData: marchallObj(t, TrackResponse{Message: "Track duration created.", Duration: 30}),
		},
		{
			name:     "updated",
			path:     "/track-duration/4",
			body:     marchallObj(t, echo.Map{"duration": 25}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, TrackResponse{Message: "Track duration updated.", Duration: 55}),
		},
		{name: "negative", path: "/track-duration/4", body: marchallObj(t, echo.Map{"duration": -1}), wantCode: http.StatusBadRequest},
		{
			name:     "missing duration",
			path:     "/track-duration/4",
			body:     marchallObj(t, echo.Map{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"duration": "this field is required"}),
		},
		{
			name:     "invalid audiobook",
			path:     "/track-duration/abc",
			body:     marchallObj(t, echo.Map{"duration": 5}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"audiobookId": "must be a positive integer"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.token = annToken
			app.serve(t, tt)
		})
	}

	tracks, _ := app.Recorder.Tracks(context.Background(), ann.ID)
	app.serve(t, httpTest{
		path:     "/tracks",
		token:    annToken,
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echo.Map{"tracks": tracks}),
	})
}

func Test_activityApi_bookmarks(t *testing.T) {
	app := setup(t)
	bea := testutil.CreateParent(t, app.accRepo, "Bea", "b@x.com", "")
	ann := testutil.CreateStudent(t, app.accRepo, "Ann", "a@x.com", "p1", 9, 3, bea.ID)
	dan := testutil.CreateStudent(t, app.accRepo, "Dan", "d@x.com", "p1", 7, 2, bea.ID)
	annToken := app.getToken(t, &ann)
	danToken := app.getToken(t, &dan)

	rec := app.serve(t, httpTest{
		method:   http.MethodPost,
		path:     "/bookmarks/4",
		body:     marchallObj(t, echo.Map{"label": "chapter 2", "time_offset": 120}),
		token:    annToken,
		wantCode: http.StatusCreated,
	})
	var created struct {
		Bookmark activity.Bookmark `json:"bookmark"`
	}
	decode(t, rec, &created)
	if created.Bookmark.ID == 0 || created.Bookmark.Label.String != "chapter 2" || created.Bookmark.TimeOffset != 120 {
		t.Fatalf("unexpected bookmark: %+v", created.Bookmark)
	}

	bookmarks, _ := app.Recorder.Bookmarks(context.Background(), ann.ID, 4)
	bmPath := "/bookmarks/" + itoa(created.Bookmark.ID)

	tests := []httpTest{
		{
			name:     "missing offset",
			method:   http.MethodPost,
			path:     "/bookmarks/4",
			body:     marchallObj(t, echo.Map{"label": "x"}),
			token:    annToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"time_offset": "this field is required"}),
		},
		{
			name:     "list",
			path:     "/bookmarks/4",
			token:    annToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echo.Map{"bookmarks": bookmarks}),
		},
		{
			name:     "list of another student",
			path:     "/bookmarks/4",
			token:    danToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echo.Map{"bookmarks": []activity.Bookmark{}}),
		},
		{
			name:     "delete another student's",
			method:   http.MethodDelete,
			path:     bmPath,
			token:    danToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{name: "delete", method: http.MethodDelete, path: bmPath, token: annToken, wantCode: http.StatusNoContent},
		{
			name:     "delete again",
			method:   http.MethodDelete,
			path:     bmPath,
			token:    annToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: activity.ErrBookmarkNotFound.Error()}),
		},
		{name: "auth required", path: "/bookmarks/4", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.serve(t, tt)
		})
	}
}
