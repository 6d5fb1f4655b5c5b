package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/jifunze/core/activity"
)

type activityRepository struct {
	db *activityTables
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db.activity}
}

func (repo *activityRepository) InsertQuizAttempt(_ context.Context, attempt activity.QuizAttempt) (activity.QuizAttempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var max int
	for _, a := range repo.db.quizzes {
		if a.StudentID == attempt.StudentID && a.QuizID == attempt.QuizID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	repo.db.pk.quiz++
	attempt.ID = repo.db.pk.quiz
	attempt.AttemptNumber = max + 1
	repo.db.quizzes = append(repo.db.quizzes, attempt)
	return attempt, nil
}

func (repo *activityRepository) InsertGameScore(_ context.Context, score activity.GameScore) (activity.GameScore, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var max int
	for _, s := range repo.db.games {
		if s.StudentID == score.StudentID && s.SubjectID == score.SubjectID && s.GameID == score.GameID && s.AttemptNumber > max {
			max = s.AttemptNumber
		}
	}
	repo.db.pk.game++
	score.ID = repo.db.pk.game
	score.AttemptNumber = max + 1
	repo.db.games = append(repo.db.games, score)
	return score, nil
}

func (repo *activityRepository) AddTrackDuration(_ context.Context, track activity.Track) (activity.Track, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := trackKey{studentID: track.StudentID, audiobookID: track.AudiobookID}
	if t, ok := repo.db.tracks[key]; ok {
		t.Duration += track.Duration
		t.UpdatedAt = track.UpdatedAt
		return *t, false, nil
	}
	repo.db.tracks[key] = &track
	return track, true, nil
}

func (repo *activityRepository) QueryTracks(_ context.Context, studentID int) ([]activity.Track, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tracks := make([]activity.Track, 0)
	for _, t := range repo.db.tracks {
		if t.StudentID == studentID {
			tracks = append(tracks, *t)
		}
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].AudiobookID < tracks[j].AudiobookID })
	return tracks, nil
}

func (repo *activityRepository) InsertBookmark(_ context.Context, bookmark activity.Bookmark) (activity.Bookmark, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.pk.bookmark++
	bookmark.ID = repo.db.pk.bookmark
	repo.db.bookmarks[bookmark.ID] = &bookmark
	return bookmark, nil
}

func (repo *activityRepository) QueryBookmarks(_ context.Context, studentID, audiobookID int) ([]activity.Bookmark, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	bookmarks := make([]activity.Bookmark, 0)
	for _, bm := range repo.db.bookmarks {
		if bm.StudentID == studentID && bm.AudiobookID == audiobookID {
			bookmarks = append(bookmarks, *bm)
		}
	}
	sort.Slice(bookmarks, func(i, j int) bool {
		if !bookmarks[i].CreatedAt.Equal(bookmarks[j].CreatedAt) {
			return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
		}
		return bookmarks[i].ID > bookmarks[j].ID
	})
	return bookmarks, nil
}

func (repo *activityRepository) GetBookmark(_ context.Context, id int) (activity.Bookmark, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if bm, ok := repo.db.bookmarks[id]; ok {
		return *bm, nil
	}
	return activity.Bookmark{}, activity.ErrBookmarkNotFound
}

func (repo *activityRepository) DeleteBookmark(_ context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.bookmarks[id]; !ok {
		return activity.ErrBookmarkNotFound
	}
	delete(repo.db.bookmarks, id)
	return nil
}
