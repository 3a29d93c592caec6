package server

import (
	"fmt"
	"testing"

	"LabSentry/internal/biz"
	"LabSentry/internal/data"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// TestMapError_PassesThroughTransportErrors verifies service-level kratos
// errors keep their original code.
func TestMapError_PassesThroughTransportErrors(t *testing.T) {
	in := kerrors.BadRequest("INVALID_ALERT", "alert id is required")

	out := mapError(in)

	kerr := kerrors.FromError(out)
	assert.Equal(t, int32(400), kerr.Code)
	assert.Equal(t, "INVALID_ALERT", kerr.Reason)
}

// TestMapError_ApprovalNotFound maps the biz missing-approval failure to a
// 404.
func TestMapError_ApprovalNotFound(t *testing.T) {
	out := mapError(&biz.ApprovalNotFoundError{AlertID: "alert-1"})

	kerr := kerrors.FromError(out)
	assert.Equal(t, int32(404), kerr.Code)
	assert.Equal(t, "APPROVAL_NOT_FOUND", kerr.Reason)
}

// TestMapError_DuplicatePending maps an already-parked approval to a 409.
func TestMapError_DuplicatePending(t *testing.T) {
	out := mapError(fmt.Errorf("failed to create pending approval: %w", data.ErrDuplicatePending))

	kerr := kerrors.FromError(out)
	assert.Equal(t, int32(409), kerr.Code)
	assert.Equal(t, "APPROVAL_EXISTS", kerr.Reason)
}

// TestMapError_DatabaseErrors maps classified database failures onto their
// HTTP statuses.
func TestMapError_DatabaseErrors(t *testing.T) {
	out := mapError(gorm.ErrRecordNotFound)
	assert.Equal(t, int32(404), kerrors.FromError(out).Code)

	out = mapError(fmt.Errorf("dial tcp 127.0.0.1:3306: connection refused"))
	kerr := kerrors.FromError(out)
	assert.Equal(t, int32(503), kerr.Code)
	assert.Equal(t, "DATABASE_UNAVAILABLE", kerr.Reason)
}

// TestMapError_UnknownErrorIs500 verifies anything unclassified degrades to
// an internal error, never a panic.
func TestMapError_UnknownErrorIs500(t *testing.T) {
	out := mapError(fmt.Errorf("something odd"))

	kerr := kerrors.FromError(out)
	assert.Equal(t, int32(500), kerr.Code)
	assert.Equal(t, "INTERNAL", kerr.Reason)

	assert.Nil(t, mapError(nil))
}
