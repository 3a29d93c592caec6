// Package errors provides database error classification utilities.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// DatabaseErrorType represents the type of database error.
type DatabaseErrorType int

const (
	// ErrorTypeUnknown represents an unknown database error.
	ErrorTypeUnknown DatabaseErrorType = iota
	// ErrorTypeDuplicateKey represents a duplicate key constraint violation (MySQL 1062).
	ErrorTypeDuplicateKey
	// ErrorTypeNotFound represents a record not found error.
	ErrorTypeNotFound
	// ErrorTypeDeadlock represents a deadlock error (MySQL 1213).
	ErrorTypeDeadlock
	// ErrorTypeDataTooLong represents a data too long error (MySQL 1406).
	ErrorTypeDataTooLong
	// ErrorTypeConnectionError represents a database connection error.
	ErrorTypeConnectionError
)

// DatabaseError wraps a database error with classification information.
type DatabaseError struct {
	Type         DatabaseErrorType
	OriginalErr  error
	MySQLErrCode uint16
	Message      string
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.MySQLErrCode > 0 {
		return fmt.Sprintf("%s (MySQL error %d): %v", e.Message, e.MySQLErrCode, e.OriginalErr)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.OriginalErr)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *DatabaseError) Unwrap() error {
	return e.OriginalErr
}

// ClassifyDBError classifies a database error into a specific error type.
//
// It handles GORM errors and MySQL-specific errors:
//   - ErrRecordNotFound → ErrorTypeNotFound
//   - MySQL 1062 (Duplicate entry) → ErrorTypeDuplicateKey
//   - MySQL 1213 (Deadlock) → ErrorTypeDeadlock
//   - MySQL 1406 (Data too long) → ErrorTypeDataTooLong
//   - Connection errors → ErrorTypeConnectionError
func ClassifyDBError(err error) *DatabaseError {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &DatabaseError{
			Type:        ErrorTypeNotFound,
			OriginalErr: err,
			Message:     "record not found",
		}
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return classifyMySQLError(mysqlErr)
	}

	if isConnectionError(err.Error()) {
		return &DatabaseError{
			Type:        ErrorTypeConnectionError,
			OriginalErr: err,
			Message:     "database connection error",
		}
	}

	return &DatabaseError{
		Type:        ErrorTypeUnknown,
		OriginalErr: err,
		Message:     "unknown database error",
	}
}

// classifyMySQLError classifies a MySQL-specific error by its code.
func classifyMySQLError(err *mysql.MySQLError) *DatabaseError {
	switch err.Number {
	case 1062:
		return &DatabaseError{
			Type:         ErrorTypeDuplicateKey,
			OriginalErr:  err,
			MySQLErrCode: err.Number,
			Message:      "duplicate key violation",
		}
	case 1213:
		return &DatabaseError{
			Type:         ErrorTypeDeadlock,
			OriginalErr:  err,
			MySQLErrCode: err.Number,
			Message:      "deadlock detected",
		}
	case 1406:
		return &DatabaseError{
			Type:         ErrorTypeDataTooLong,
			OriginalErr:  err,
			MySQLErrCode: err.Number,
			Message:      "data too long for column",
		}
	default:
		return &DatabaseError{
			Type:         ErrorTypeUnknown,
			OriginalErr:  err,
			MySQLErrCode: err.Number,
			Message:      "mysql error",
		}
	}
}

// isConnectionError matches common connection failure message patterns.
func isConnectionError(errMsg string) bool {
	patterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"invalid connection",
	}
	lower := strings.ToLower(errMsg)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsDuplicateKeyError reports whether err is a duplicate key violation.
func IsDuplicateKeyError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeDuplicateKey
}

// IsNotFoundError reports whether err is a record-not-found error.
func IsNotFoundError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeNotFound
}

// IsDeadlockError reports whether err is a deadlock error.
func IsDeadlockError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeDeadlock
}
