package clinic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Table names double as change-feed topics.
const (
	TablePatients     = "patients"
	TableDoctors      = "doctors"
	TableAppointments = "appointments"
	TableTreatments   = "treatments"
)

// Gender of a patient as stored.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// ParseGender matches s case-insensitively against the known genders. Blank
// input is Other; anything unrecognised is returned unchanged.
func ParseGender(s string) Gender {
	s = strings.TrimSpace(s)
	if s == "" {
		return GenderOther
	}
	for _, g := range []Gender{GenderMale, GenderFemale, GenderOther} {
		if strings.EqualFold(s, string(g)) {
			return g
		}
	}
	return Gender(s)
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusUpcoming  AppointmentStatus = "Upcoming"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus matches s case-insensitively against the known statuses. Blank
// input is Upcoming; anything unrecognised is returned unchanged.
func ParseStatus(s string) AppointmentStatus {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusUpcoming
	}
	for _, st := range []AppointmentStatus{StatusUpcoming, StatusCompleted, StatusCancelled} {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	return AppointmentStatus(s)
}

// PatientRecord maps to the patients table.
type PatientRecord struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	Name        string `gorm:"column:name"`
	Gender      string `gorm:"column:gender"`
	DateOfBirth string `gorm:"column:date_of_birth"`
	Age         int    `gorm:"column:age"`
	Phone       string `gorm:"column:phone"`
	Address     string `gorm:"column:address"`
}

func (PatientRecord) TableName() string { return TablePatients }

// DoctorRecord maps to the doctors table.
type DoctorRecord struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Name      string `gorm:"column:name"`
	Specialty string `gorm:"column:specialty"`
	Phone     string `gorm:"column:phone"`
	Email     string `gorm:"column:email"`
}

func (DoctorRecord) TableName() string { return TableDoctors }

// AppointmentRecord maps to the appointments table.
type AppointmentRecord struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	PatientID int64  `gorm:"column:patient_id"`
	DoctorID  int64  `gorm:"column:doctor_id"`
	Date      string `gorm:"column:date"`
	Time      string `gorm:"column:time"`
	Reason    string `gorm:"column:reason"`
	Status    string `gorm:"column:status"`
}

func (AppointmentRecord) TableName() string { return TableAppointments }

// TreatmentRecord maps to the treatments table.
type TreatmentRecord struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	AppointmentID int64  `gorm:"column:appointment_id"`
	PatientID     int64  `gorm:"column:patient_id"`
	Diagnosis     string `gorm:"column:diagnosis"`
	Treatment     string `gorm:"column:treatment"`
	Notes         string `gorm:"column:notes"`
	Date          string `gorm:"column:date"`
}

func (TreatmentRecord) TableName() string { return TableTreatments }

// Patient is the presentation form of a patient.
type Patient struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      Gender `json:"gender"`
	DateOfBirth string `json:"dateOfBirth"`
	Age         int    `json:"age"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

// AgeAt recomputes the patient's age from the date of birth. The stored age
// is returned when the date of birth does not parse.
func (p Patient) AgeAt(now time.Time) int {
	born, err := ParseBirthDate(p.DateOfBirth)
	if err != nil {
		return p.Age
	}
	return yearsBetween(born, now)
}

// Doctor is the presentation form of a doctor.
type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// Appointment is the presentation form of an appointment.
type Appointment struct {
	ID        string            `json:"id"`
	PatientID string            `json:"patientId"`
	DoctorID  string            `json:"doctorId"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Status    AppointmentStatus `json:"status"`
}

// Treatment is the presentation form of a treatment record.
type Treatment struct {
	ID            string `json:"id"`
	AppointmentID string `json:"appointmentId"`
	PatientID     string `json:"patientId"`
	Diagnosis     string `json:"diagnosis"`
	Treatment     string `json:"treatment"`
	Notes         string `json:"notes"`
	Date          string `json:"date"`
}

// Dashboard bundles the counters shown on the home screen.
type Dashboard struct {
	TotalPatients        int64 `json:"totalPatients"`
	TotalDoctors         int64 `json:"totalDoctors"`
	UpcomingAppointments int64 `json:"upcomingAppointments"`
	TodayAppointments    int64 `json:"todayAppointments"`
	Treatments           int64 `json:"treatments"`
}

func (r PatientRecord) toPatient() Patient {
	return Patient{
		ID:          formatID(r.ID),
		Name:        r.Name,
		Gender:      ParseGender(r.Gender),
		DateOfBirth: r.DateOfBirth,
		Age:         r.Age,
		Phone:       r.Phone,
		Address:     r.Address,
	}
}

func (r DoctorRecord) toDoctor() Doctor {
	return Doctor{
		ID:        formatID(r.ID),
		Name:      r.Name,
		Specialty: r.Specialty,
		Phone:     r.Phone,
		Email:     r.Email,
	}
}

func (r AppointmentRecord) toAppointment() Appointment {
	return Appointment{
		ID:        formatID(r.ID),
		PatientID: formatID(r.PatientID),
		DoctorID:  formatID(r.DoctorID),
		Date:      r.Date,
		Time:      r.Time,
		Reason:    r.Reason,
		Status:    ParseStatus(r.Status),
	}
}

func (r TreatmentRecord) toTreatment() Treatment {
	return Treatment{
		ID:            formatID(r.ID),
		AppointmentID: formatID(r.AppointmentID),
		PatientID:     formatID(r.PatientID),
		Diagnosis:     r.Diagnosis,
		Treatment:     r.Treatment,
		Notes:         r.Notes,
		Date:          r.Date,
	}
}

func mapRecords[R, P any](recs []R, f func(R) P) []P {
	out := make([]P, len(recs))
	for i, r := range recs {
		out[i] = f(r)
	}
	return out
}

// parseID converts a presentation identifier to a row id. Blank is 0.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	if id < 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
