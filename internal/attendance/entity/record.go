package entity

import "time"

// WorkMode is where the employee works for the day.
type WorkMode string

const (
	ModeOffice WorkMode = "OFFICE"
	ModeHome   WorkMode = "HOME"
)

// Status is assigned at check-in and never revised by check-out.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
	StatusHalfDay Status = "HALF_DAY"
)

// DateLayout is the calendar-day format of Record.Date, local to the
// check-in moment.
const DateLayout = "2006-01-02"

// Record is one user's attendance for one calendar day. Employee fields are
// denormalized snapshots taken at check-in time. JSON field names match the
// cloud sync wire format.
type Record struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	EmployeeID           string     `json:"employeeId"`
	EmployeeName         string     `json:"employeeName"`
	Department           string     `json:"department"`
	Date                 string     `json:"date"`
	CheckInTime          time.Time  `json:"checkInTime"`
	CheckOutTime         *time.Time `json:"checkOutTime,omitempty"`
	CheckInLocation      string     `json:"checkInLocation,omitempty"`
	CheckOutLocation     string     `json:"checkOutLocation,omitempty"`
	WorkMode             WorkMode   `json:"workMode"`
	TotalDurationMinutes *int       `json:"totalDurationMinutes,omitempty"`
	Status               Status     `json:"status"`
}

// Open reports whether the record is checked in but not yet checked out.
func (r *Record) Open() bool {
	return r.CheckOutTime == nil
}
