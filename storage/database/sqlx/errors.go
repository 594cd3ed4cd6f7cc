package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqNoDataFound         = "P0002"
	pqInvalidText         = "22P02" // e.g. a malformed uuid, which cannot match any row
	pqNumericOutOfRange   = "22003"
	pqConnectionClass     = "08"
)

// storageErr maps driver failures that mean the store could not be reached to core.ErrStorageUnavailable.
// Anything else is wrapped with msg.
func storageErr(err error, msg string) error {
	if isUnavailable(err) {
		return errors.Wrap(core.ErrStorageUnavailable, msg+": "+err.Error())
	}
	return errors.Wrap(err, msg)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), pqConnectionClass)
	}
	return false
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func pqConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}
