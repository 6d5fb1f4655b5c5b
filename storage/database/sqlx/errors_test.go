package sqlxrepos

import (
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/activity"
)

func Test_wrapErr(t *testing.T) {
	assert.NoError(t, wrapErr(nil, "selecting"))

	tests := []struct {
		name         string
		err          error
		wantShutdown bool
	}{
		{name: "admin shutdown", err: &pq.Error{Code: adminShutdown}, wantShutdown: true},
		{name: "crash shutdown", err: &pq.Error{Code: crashShutdown}, wantShutdown: true},
		{name: "cannot connect now", err: errors.Wrap(&pq.Error{Code: cannotConnectNow}, "tx"), wantShutdown: true},
		{name: "query canceled", err: &pq.Error{Code: "57014"}},
		{name: "unique violation", err: &pq.Error{Code: uniqueViolation}},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr(tt.err, "selecting")
			assert.Equal(t, tt.wantShutdown, core.IsShutdown(err))
			assert.Contains(t, err.Error(), "selecting: ")
			if !tt.wantShutdown {
				assert.Equal(t, errors.Cause(tt.err), errors.Cause(err))
			}
		})
	}
}

func Test_trapNoRowsErr(t *testing.T) {
	assert.Equal(t, activity.ErrBookmarkNotFound, trapNoRowsErr(sql.ErrNoRows, activity.ErrBookmarkNotFound, "selecting bookmark"))
	assert.True(t, core.IsShutdown(trapNoRowsErr(&pq.Error{Code: adminShutdown}, activity.ErrBookmarkNotFound, "selecting bookmark")))
}

func Test_mapAttemptErr(t *testing.T) {
	assert.Equal(t, activity.ErrDuplicateAttempt, mapAttemptErr(wrapErr(&pq.Error{Code: serializationFailure}, "inserting")))
	assert.Equal(t, activity.ErrDuplicateAttempt, mapAttemptErr(&pq.Error{Code: uniqueViolation}))
}
