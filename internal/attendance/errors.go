package attendance

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrPolicyDenied means the requested work mode is not in the user's
	// allowed locations.
	ErrPolicyDenied = errors.New("work mode not permitted for this user")

	// ErrLocationUnavailable means the device position could not be read in
	// time for an office check-in.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrAlreadyCheckedIn means an open record already exists for today.
	ErrAlreadyCheckedIn = errors.New("already checked in today")

	// ErrDayComplete means today's record is already closed; the day cannot
	// be reopened.
	ErrDayComplete = errors.New("attendance for today is already complete")

	// ErrNotCheckedIn means check-out was requested with no record today.
	ErrNotCheckedIn = errors.New("not checked in today")

	// ErrAlreadyCheckedOut means today's record is already closed.
	ErrAlreadyCheckedOut = errors.New("already checked out today")

	// ErrUserNotFound means the acting user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// OutOfRangeError is returned when an office check-in position falls outside
// the geofence. Distances are reported rounded to whole meters.
type OutOfRangeError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("You are %dm away from Office. Max allowed: %dm.",
		int(math.Round(e.DistanceMeters)), int(math.Round(e.RadiusMeters)))
}
