package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
)

// postgres error codes
const (
	uniqueViolation      = pq.ErrorCode("23505")
	serializationFailure = pq.ErrorCode("40001")
	adminShutdown        = pq.ErrorCode("57P01")
	crashShutdown        = pq.ErrorCode("57P02")
	cannotConnectNow     = pq.ErrorCode("57P03")
)

func pqCode(err error) pq.ErrorCode {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code
	}
	return ""
}

// wrapErr annotates err with msg.
// A server going down is reported as a shutdown error so the API stops gracefully.
func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	switch pqCode(err) {
	case adminShutdown, crashShutdown, cannotConnectNow:
		return core.NewShutdownError(msg + ": " + err.Error())
	}
	return errors.Wrap(err, msg)
}

// trapNoRowsErr maps the "no rows" error to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return wrapErr(err, msg)
}
