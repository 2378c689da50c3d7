package service

import (
	"errors"
	"math"

	"gorm.io/gorm"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInsufficientStock      = errors.New("requested quantity exceeds available stock")
	ErrInvalidPrice           = errors.New("price must be a non-negative amount")
	ErrInvalidResourceType    = errors.New("unknown resource type")
	ErrResourceInUse          = errors.New("resource has open write-off requests")
	ErrConcurrentModification = errors.New("request was changed concurrently, reload and try again")
	ErrDuplicateSubmission    = errors.New("this write-off request was already submitted")
	ErrInvalidCredentials     = errors.New("invalid credentials or user not approved")
	ErrUsernameTaken          = errors.New("username already exists")
	ErrInvalidRole            = errors.New("invalid role: must be employee, manager or admin")
	ErrRoleNotAllowed         = errors.New("your role cannot assign this role")
	ErrCannotDeleteSelf       = errors.New("you cannot remove your own user")
	ErrAlreadyApproved        = errors.New("user already approved")
	ErrSessionRevoked         = errors.New("session user was removed or is not approved")
)

// maxQuantity matches the integer column that stores stock counts.
const maxQuantity = math.MaxInt32

func validQuantity(n int) bool {
	return n >= 0 && n <= maxQuantity
}

// notFound converts gorm's missing-row error into ErrNotFound and leaves
// everything else untouched.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
