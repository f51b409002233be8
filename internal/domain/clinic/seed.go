package clinic

import (
	"context"
	"fmt"
)

// SeedSummary counts the rows written by Seed.
type SeedSummary struct {
	Skipped      bool `json:"skipped"`
	Patients     int  `json:"patients"`
	Doctors      int  `json:"doctors"`
	Appointments int  `json:"appointments"`
	Treatments   int  `json:"treatments"`
}

// Sample rows reference each other by their demo keys ("P001", "D002", ...).
// Seed swaps the keys for the ids the store assigns.
var (
	samplePatients = []struct {
		key string
		p   Patient
	}{
		{"P001", Patient{Name: "Sarah Johnson", Gender: GenderFemale, DateOfBirth: "1992-03-15", Age: 32, Phone: "+1 555-0101", Address: "123 Oak Street, Springfield, IL 62701"}},
		{"P002", Patient{Name: "Michael Chen", Gender: GenderMale, DateOfBirth: "1985-07-22", Age: 39, Phone: "+1 555-0102", Address: "456 Maple Avenue, Springfield, IL 62702"}},
		{"P003", Patient{Name: "Emily Rodriguez", Gender: GenderFemale, DateOfBirth: "1998-11-08", Age: 26, Phone: "+1 555-0103", Address: "789 Pine Road, Springfield, IL 62703"}},
		{"P004", Patient{Name: "James Williams", Gender: GenderMale, DateOfBirth: "1975-05-30", Age: 49, Phone: "+1 555-0104", Address: "321 Elm Boulevard, Springfield, IL 62704"}},
		{"P005", Patient{Name: "Olivia Brown", Gender: GenderFemale, DateOfBirth: "2001-09-12", Age: 23, Phone: "+1 555-0105", Address: "654 Cedar Lane, Springfield, IL 62705"}},
	}

	sampleDoctors = []struct {
		key string
		d   Doctor
	}{
		{"D001", Doctor{Name: "Dr. Robert Anderson", Specialty: "Cardiologist", Phone: "+1 555-0201", Email: "r.anderson@clinicare.com"}},
		{"D002", Doctor{Name: "Dr. Lisa Martinez", Specialty: "General Practitioner", Phone: "+1 555-0202", Email: "l.martinez@clinicare.com"}},
		{"D003", Doctor{Name: "Dr. David Kumar", Specialty: "Pediatrician", Phone: "+1 555-0203", Email: "d.kumar@clinicare.com"}},
		{"D004", Doctor{Name: "Dr. Jennifer Lee", Specialty: "Dermatologist", Phone: "+1 555-0204", Email: "j.lee@clinicare.com"}},
	}

	sampleAppointments = []struct {
		key string
		a   Appointment
	}{
		{"A001", Appointment{PatientID: "P001", DoctorID: "D001", Date: "2025-11-22", Time: "09:00", Reason: "Regular cardiac checkup", Status: StatusUpcoming}},
		{"A002", Appointment{PatientID: "P002", DoctorID: "D002", Date: "2025-11-20", Time: "10:30", Reason: "Follow-up consultation", Status: StatusUpcoming}},
		{"A003", Appointment{PatientID: "P003", DoctorID: "D003", Date: "2025-11-18", Time: "14:00", Reason: "Annual physical examination", Status: StatusCompleted}},
		{"A004", Appointment{PatientID: "P004", DoctorID: "D002", Date: "2025-11-15", Time: "11:00", Reason: "Flu symptoms", Status: StatusCompleted}},
		{"A005", Appointment{PatientID: "P005", DoctorID: "D004", Date: "2025-11-23", Time: "15:30", Reason: "Skin condition consultation", Status: StatusUpcoming}},
	}

	sampleTreatments = []Treatment{
		{
			AppointmentID: "A003",
			PatientID:     "P003",
			Diagnosis:     "Healthy, no issues found",
			Treatment:     "Continue regular exercise and balanced diet. Prescribed multivitamin supplement.",
			Notes:         "All vital signs normal. Next checkup in 12 months.",
			Date:          "2025-11-18",
		},
		{
			AppointmentID: "A004",
			PatientID:     "P004",
			Diagnosis:     "Viral upper respiratory infection (Common cold)",
			Treatment:     "Rest, fluids, and over-the-counter decongestants. Prescribed: Paracetamol 500mg as needed.",
			Notes:         "Patient advised to return if symptoms worsen or persist beyond 7 days.",
			Date:          "2025-11-15",
		},
	}
)

// Seed loads the demo patients, doctors, appointments and treatments
// through the coordinator. It does nothing when any patient already exists.
func Seed(ctx context.Context, c *Coordinator) (SeedSummary, error) {
	var sum SeedSummary

	n, err := c.store.Patients.Count(ctx)
	if err != nil {
		return sum, fmt.Errorf("count patients: %w", err)
	}
	if n > 0 {
		sum.Skipped = true
		return sum, nil
	}

	ids := make(map[string]string)
	add := func(key string, write func() (Result, error)) error {
		res, err := write()
		if err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
		if key != "" {
			ids[key] = res.ID
		}
		return nil
	}

	for _, s := range samplePatients {
		p := s.p
		if err := add(s.key, func() (Result, error) { return c.AddPatient(ctx, p) }); err != nil {
			return sum, err
		}
		sum.Patients++
	}
	for _, s := range sampleDoctors {
		d := s.d
		if err := add(s.key, func() (Result, error) { return c.AddDoctor(ctx, d) }); err != nil {
			return sum, err
		}
		sum.Doctors++
	}
	for _, s := range sampleAppointments {
		a := s.a
		a.PatientID = ids[a.PatientID]
		a.DoctorID = ids[a.DoctorID]
		if err := add(s.key, func() (Result, error) { return c.AddAppointment(ctx, a) }); err != nil {
			return sum, err
		}
		sum.Appointments++
	}
	for _, t := range sampleTreatments {
		t.AppointmentID = ids[t.AppointmentID]
		t.PatientID = ids[t.PatientID]
		if err := add("", func() (Result, error) { return c.AddTreatment(ctx, t) }); err != nil {
			return sum, err
		}
		sum.Treatments++
	}

	c.logger.Info().
		Int("patients", sum.Patients).
		Int("doctors", sum.Doctors).
		Int("appointments", sum.Appointments).
		Int("treatments", sum.Treatments).
		Msg("demo data seeded")
	return sum, nil
}
