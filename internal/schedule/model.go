package schedule

import "time"

// Details is one bookable slot resolved against its center, speciality
// and doctor.
type Details struct {
	ScheduleID     int64
	Date           time.Time
	CenterID       int64
	CenterName     string
	CenterAddress  string
	SpecialityID   int64
	SpecialityName string
	MedicID        int64
	MedicFirstName string
	MedicLastName  string
}

// ProcessedAppointment is the snapshot row written to the country store
// alongside the booking, inside the same transaction.
type ProcessedAppointment struct {
	AppointmentID string
	InsuredID     string
	ScheduleID    int64
	CountryISO    string
	CenterID      int64
	SpecialityID  int64
	MedicID       int64
	Date          time.Time
	Status        string
	CreatedAt     time.Time
	ProcessedAt   time.Time
}
