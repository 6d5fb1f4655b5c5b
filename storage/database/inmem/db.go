// Package inmemdb stores everything in process memory. Used by tests and DATABASE_ENGINE=memory.
package inmemdb

import (
	"sync"

	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/activity"
)

type (
	DB struct {
		account  *accountTables
		activity *activityTables
	}

	accountTables struct {
		mutex    sync.RWMutex
		pk       pkSeq
		parents  map[int]*account.Parent
		students map[int]*account.Student
	}

	trackKey struct {
		studentID, audiobookID int
	}

	activityTables struct {
		mutex     sync.RWMutex
		pk        pkSeq
		quizzes   []activity.QuizAttempt
		games     []activity.GameScore
		tracks    map[trackKey]*activity.Track
		bookmarks map[int]*activity.Bookmark
	}

	pkSeq struct {
		parent, student, quiz, game, bookmark int
	}
)

func Open() *DB {
	return &DB{
		account: &accountTables{
			parents:  make(map[int]*account.Parent),
			students: make(map[int]*account.Student),
		},
		activity: &activityTables{
			tracks:    make(map[trackKey]*activity.Track),
			bookmarks: make(map[int]*activity.Bookmark),
		},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.account.mutex.Lock()
	db.account.pk = pkSeq{}
	db.account.parents = make(map[int]*account.Parent)
	db.account.students = make(map[int]*account.Student)
	db.account.mutex.Unlock()

	db.activity.mutex.Lock()
	db.activity.pk = pkSeq{}
	db.activity.quizzes = nil
	db.activity.games = nil
	db.activity.tracks = make(map[trackKey]*activity.Track)
	db.activity.bookmarks = make(map[int]*activity.Bookmark)
	db.activity.mutex.Unlock()
}
