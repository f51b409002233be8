package clinic

import "context"

// PatientRepository defines the persistence interface for patients.
type PatientRepository interface {
	Insert(ctx context.Context, p *PatientRecord) (int64, error)
	Update(ctx context.Context, p *PatientRecord) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*PatientRecord, error)
	List(ctx context.Context) ([]PatientRecord, error)
	Search(ctx context.Context, query string) ([]PatientRecord, error)
	Count(ctx context.Context) (int64, error)
}

// DoctorRepository defines the persistence interface for doctors.
type DoctorRepository interface {
	Insert(ctx context.Context, d *DoctorRecord) (int64, error)
	Update(ctx context.Context, d *DoctorRecord) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*DoctorRecord, error)
	List(ctx context.Context) ([]DoctorRecord, error)
	Search(ctx context.Context, query string) ([]DoctorRecord, error)
	ListBySpecialty(ctx context.Context, specialty string) ([]DoctorRecord, error)
	Count(ctx context.Context) (int64, error)
}

// AppointmentRepository defines the persistence interface for appointments.
type AppointmentRepository interface {
	Insert(ctx context.Context, a *AppointmentRecord) (int64, error)
	Update(ctx context.Context, a *AppointmentRecord) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*AppointmentRecord, error)
	List(ctx context.Context) ([]AppointmentRecord, error)
	ListByPatient(ctx context.Context, patientID int64) ([]AppointmentRecord, error)
	ListByDoctor(ctx context.Context, doctorID int64) ([]AppointmentRecord, error)
	ListByStatus(ctx context.Context, statuses ...string) ([]AppointmentRecord, error)
	ListByDate(ctx context.Context, date string) ([]AppointmentRecord, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountByDate(ctx context.Context, date string) (int64, error)
	CountUpcomingByDoctor(ctx context.Context, doctorID int64) (int64, error)
}

// TreatmentRepository defines the persistence interface for treatments.
type TreatmentRepository interface {
	Insert(ctx context.Context, t *TreatmentRecord) (int64, error)
	Update(ctx context.Context, t *TreatmentRecord) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*TreatmentRecord, error)
	List(ctx context.Context) ([]TreatmentRecord, error)
	ListByPatient(ctx context.Context, patientID int64) ([]TreatmentRecord, error)
	ListByAppointment(ctx context.Context, appointmentID int64) ([]TreatmentRecord, error)
	Count(ctx context.Context) (int64, error)
}
