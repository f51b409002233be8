package clinic

import (
	"strings"
	"time"
)

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// recordID parses the identifier of an existing row for update or delete.
func recordID(id, entity string) (int64, error) {
	n, err := parseID(id)
	if err != nil || n == 0 {
		return 0, invalid("id", "Invalid "+entity+" ID")
	}
	return n, nil
}

// relationID parses a foreign key chosen by the user.
func relationID(id, field, msg string) (int64, error) {
	n, err := parseID(id)
	if err != nil || n == 0 {
		return 0, invalid(field, msg)
	}
	return n, nil
}

// patientRecord validates p and builds the row to store. A missing age
// (zero or negative) is derived from the date of birth.
func patientRecord(p Patient, now time.Time) (*PatientRecord, error) {
	switch {
	case blank(p.Name):
		return nil, invalid("name", "Name cannot be empty")
	case blank(p.Phone):
		return nil, invalid("phone", "Phone cannot be empty")
	case blank(p.DateOfBirth):
		return nil, invalid("dateOfBirth", "Date of birth cannot be empty")
	case blank(p.Address):
		return nil, invalid("address", "Address cannot be empty")
	}

	gender := ParseGender(string(p.Gender))
	if !gender.Valid() {
		return nil, invalid("gender", "Invalid gender")
	}

	age := p.Age
	if age <= 0 {
		born, err := ParseBirthDate(p.DateOfBirth)
		if err != nil {
			return nil, invalid("dateOfBirth", "Date of birth is not a valid date")
		}
		age = yearsBetween(born, now)
	}
	if age <= 0 {
		return nil, invalid("age", "Age must be positive")
	}

	return &PatientRecord{
		Name:        strings.TrimSpace(p.Name),
		Gender:      string(gender),
		DateOfBirth: strings.TrimSpace(p.DateOfBirth),
		Age:         age,
		Phone:       strings.TrimSpace(p.Phone),
		Address:     strings.TrimSpace(p.Address),
	}, nil
}

func doctorRecord(d Doctor) (*DoctorRecord, error) {
	switch {
	case blank(d.Name):
		return nil, invalid("name", "Name cannot be empty")
	case blank(d.Specialty):
		return nil, invalid("specialty", "Specialty cannot be empty")
	case blank(d.Phone):
		return nil, invalid("phone", "Phone cannot be empty")
	case blank(d.Email):
		return nil, invalid("email", "Email cannot be empty")
	case !strings.Contains(d.Email, "@"):
		return nil, invalid("email", "Invalid email format")
	}

	return &DoctorRecord{
		Name:      strings.TrimSpace(d.Name),
		Specialty: strings.TrimSpace(d.Specialty),
		Phone:     strings.TrimSpace(d.Phone),
		Email:     strings.TrimSpace(d.Email),
	}, nil
}

func appointmentRecord(a Appointment) (*AppointmentRecord, error) {
	patientID, err := relationID(a.PatientID, "patientId", "Please select a patient")
	if err != nil {
		return nil, err
	}
	doctorID, err := relationID(a.DoctorID, "doctorId", "Please select a doctor")
	if err != nil {
		return nil, err
	}

	switch {
	case blank(a.Date):
		return nil, invalid("date", "Date cannot be empty")
	case blank(a.Time):
		return nil, invalid("time", "Time cannot be empty")
	case blank(a.Reason):
		return nil, invalid("reason", "Reason cannot be empty")
	}

	status := ParseStatus(string(a.Status))
	if !status.Valid() {
		return nil, invalid("status", "Invalid status")
	}

	return &AppointmentRecord{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      strings.TrimSpace(a.Date),
		Time:      strings.TrimSpace(a.Time),
		Reason:    strings.TrimSpace(a.Reason),
		Status:    string(status),
	}, nil
}

func treatmentRecord(t Treatment) (*TreatmentRecord, error) {
	appointmentID, err := relationID(t.AppointmentID, "appointmentId", "Invalid appointment")
	if err != nil {
		return nil, err
	}
	patientID, err := relationID(t.PatientID, "patientId", "Invalid patient")
	if err != nil {
		return nil, err
	}

	switch {
	case blank(t.Diagnosis):
		return nil, invalid("diagnosis", "Diagnosis cannot be empty")
	case blank(t.Treatment):
		return nil, invalid("treatment", "Treatment cannot be empty")
	case blank(t.Date):
		return nil, invalid("date", "Date cannot be empty")
	}

	return &TreatmentRecord{
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Diagnosis:     strings.TrimSpace(t.Diagnosis),
		Treatment:     strings.TrimSpace(t.Treatment),
		Notes:         strings.TrimSpace(t.Notes),
		Date:          strings.TrimSpace(t.Date),
	}, nil
}
