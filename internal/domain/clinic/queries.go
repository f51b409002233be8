package clinic

import (
	"context"
	"time"

	"github.com/cliniccare/clinic/internal/platform/changefeed"
	"github.com/cliniccare/clinic/internal/platform/journal"
)

// Every query below is live: Get reads once, Watch re-reads after each
// change to the tables it depends on. A by-id query for a missing or
// malformed id yields nil, not an error.

func liveQuery[T any](c *Coordinator, fetch func(ctx context.Context) (T, error), topics ...string) changefeed.Query[T] {
	return changefeed.Query[T]{
		Hub:    c.store.Changes,
		Topics: topics,
		Fetch:  fetch,
		OnError: func(err error) {
			c.logger.Error().Err(err).Strs("topics", topics).Msg("live query failed")
		},
	}
}

func listQuery[R, P any](c *Coordinator, list func(ctx context.Context) ([]R, error), conv func(R) P, topics ...string) changefeed.Query[[]P] {
	return liveQuery(c, func(ctx context.Context) ([]P, error) {
		recs, err := list(ctx)
		if err != nil {
			return nil, err
		}
		return mapRecords(recs, conv), nil
	}, topics...)
}

func byIDQuery[R, P any](c *Coordinator, rawID string, get func(ctx context.Context, id int64) (*R, error), conv func(R) P, topics ...string) changefeed.Query[*P] {
	id, err := parseID(rawID)
	return liveQuery(c, func(ctx context.Context) (*P, error) {
		if err != nil || id == 0 {
			return nil, nil
		}
		rec, gerr := get(ctx, id)
		if gerr != nil || rec == nil {
			return nil, gerr
		}
		p := conv(*rec)
		return &p, nil
	}, topics...)
}

func (c *Coordinator) countQuery(topic string, count func(ctx context.Context) (int64, error)) changefeed.Query[int64] {
	return liveQuery(c, count, topic)
}

// relationQuery lists rows related to rawID; a malformed id has no rows.
func relationQuery[R, P any](c *Coordinator, rawID string, list func(ctx context.Context, id int64) ([]R, error), conv func(R) P, topics ...string) changefeed.Query[[]P] {
	id, err := parseID(rawID)
	return listQuery(c, func(ctx context.Context) ([]R, error) {
		if err != nil || id == 0 {
			return []R{}, nil
		}
		return list(ctx, id)
	}, conv, topics...)
}

// -- Patients --

// PatientList is every patient ordered by name.
func (c *Coordinator) PatientList() changefeed.Query[[]Patient] {
	return listQuery(c, c.store.Patients.List, PatientRecord.toPatient, TablePatients)
}

func (c *Coordinator) Patient(id string) changefeed.Query[*Patient] {
	return byIDQuery(c, id, c.store.Patients.GetByID, PatientRecord.toPatient, TablePatients)
}

// SearchPatients matches query case-insensitively against name and phone. A
// blank query returns every patient.
func (c *Coordinator) SearchPatients(query string) changefeed.Query[[]Patient] {
	return listQuery(c, func(ctx context.Context) ([]PatientRecord, error) {
		return c.store.Patients.Search(ctx, query)
	}, PatientRecord.toPatient, TablePatients)
}

// -- Doctors --

// DoctorList is every doctor ordered by name.
func (c *Coordinator) DoctorList() changefeed.Query[[]Doctor] {
	return listQuery(c, c.store.Doctors.List, DoctorRecord.toDoctor, TableDoctors)
}

func (c *Coordinator) Doctor(id string) changefeed.Query[*Doctor] {
	return byIDQuery(c, id, c.store.Doctors.GetByID, DoctorRecord.toDoctor, TableDoctors)
}

// SearchDoctors matches query case-insensitively against name and
// specialty. A blank query returns every doctor.
func (c *Coordinator) SearchDoctors(query string) changefeed.Query[[]Doctor] {
	return listQuery(c, func(ctx context.Context) ([]DoctorRecord, error) {
		return c.store.Doctors.Search(ctx, query)
	}, DoctorRecord.toDoctor, TableDoctors)
}

func (c *Coordinator) DoctorsBySpecialty(specialty string) changefeed.Query[[]Doctor] {
	return listQuery(c, func(ctx context.Context) ([]DoctorRecord, error) {
		return c.store.Doctors.ListBySpecialty(ctx, specialty)
	}, DoctorRecord.toDoctor, TableDoctors)
}

// -- Appointments --

// AppointmentList is every appointment, newest date and time first.
func (c *Coordinator) AppointmentList() changefeed.Query[[]Appointment] {
	return listQuery(c, c.store.Appointments.List, AppointmentRecord.toAppointment, TableAppointments)
}

func (c *Coordinator) Appointment(id string) changefeed.Query[*Appointment] {
	return byIDQuery(c, id, c.store.Appointments.GetByID, AppointmentRecord.toAppointment, TableAppointments)
}

func (c *Coordinator) AppointmentsByPatient(patientID string) changefeed.Query[[]Appointment] {
	return relationQuery(c, patientID, c.store.Appointments.ListByPatient, AppointmentRecord.toAppointment, TableAppointments)
}

func (c *Coordinator) AppointmentsByDoctor(doctorID string) changefeed.Query[[]Appointment] {
	return relationQuery(c, doctorID, c.store.Appointments.ListByDoctor, AppointmentRecord.toAppointment, TableAppointments)
}

// AppointmentsByStatus lists appointments in any of statuses, earliest
// first. Completed and Cancelled together form the history view.
func (c *Coordinator) AppointmentsByStatus(statuses ...AppointmentStatus) changefeed.Query[[]Appointment] {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}
	return listQuery(c, func(ctx context.Context) ([]AppointmentRecord, error) {
		return c.store.Appointments.ListByStatus(ctx, raw...)
	}, AppointmentRecord.toAppointment, TableAppointments)
}

// AppointmentsByDate lists the appointments on date ordered by time.
func (c *Coordinator) AppointmentsByDate(date string) changefeed.Query[[]Appointment] {
	return listQuery(c, func(ctx context.Context) ([]AppointmentRecord, error) {
		return c.store.Appointments.ListByDate(ctx, date)
	}, AppointmentRecord.toAppointment, TableAppointments)
}

// UpcomingCountForDoctor counts a doctor's Upcoming appointments.
func (c *Coordinator) UpcomingCountForDoctor(doctorID string) changefeed.Query[int64] {
	id, err := parseID(doctorID)
	return c.countQuery(TableAppointments, func(ctx context.Context) (int64, error) {
		if err != nil || id == 0 {
			return 0, nil
		}
		return c.store.Appointments.CountUpcomingByDoctor(ctx, id)
	})
}

// -- Treatments --

// TreatmentList is every treatment, newest first.
func (c *Coordinator) TreatmentList() changefeed.Query[[]Treatment] {
	return listQuery(c, c.store.Treatments.List, TreatmentRecord.toTreatment, TableTreatments)
}

func (c *Coordinator) Treatment(id string) changefeed.Query[*Treatment] {
	return byIDQuery(c, id, c.store.Treatments.GetByID, TreatmentRecord.toTreatment, TableTreatments)
}

func (c *Coordinator) TreatmentsByPatient(patientID string) changefeed.Query[[]Treatment] {
	return relationQuery(c, patientID, c.store.Treatments.ListByPatient, TreatmentRecord.toTreatment, TableTreatments)
}

func (c *Coordinator) TreatmentsByAppointment(appointmentID string) changefeed.Query[[]Treatment] {
	return relationQuery(c, appointmentID, c.store.Treatments.ListByAppointment, TreatmentRecord.toTreatment, TableTreatments)
}

// -- Summary --

// Dashboard reads every counter in one value. Like TodayCount it also
// re-reads on the refresh interval.
func (c *Coordinator) Dashboard() changefeed.Query[Dashboard] {
	q := liveQuery(c, func(ctx context.Context) (Dashboard, error) {
		var d Dashboard
		var err error
		if d.TotalPatients, err = c.store.Patients.Count(ctx); err != nil {
			return Dashboard{}, err
		}
		if d.TotalDoctors, err = c.store.Doctors.Count(ctx); err != nil {
			return Dashboard{}, err
		}
		if d.UpcomingAppointments, err = c.store.Appointments.CountByStatus(ctx, string(StatusUpcoming)); err != nil {
			return Dashboard{}, err
		}
		if d.TodayAppointments, err = c.store.Appointments.CountByDate(ctx, c.today()); err != nil {
			return Dashboard{}, err
		}
		if d.Treatments, err = c.store.Treatments.Count(ctx); err != nil {
			return Dashboard{}, err
		}
		return d, nil
	}, TablePatients, TableDoctors, TableAppointments, TableTreatments)
	q.Every = c.refresh
	return q
}

// Activity returns the newest n journal entries. Without a journal it
// returns nothing.
func (c *Coordinator) Activity(n int) ([]journal.Entry, error) {
	if c.journal == nil {
		return []journal.Entry{}, nil
	}
	return c.journal.Recent(n)
}

// CalculateAge returns the age for dob at the coordinator's clock.
func (c *Coordinator) CalculateAge(dob string) int {
	return CalculateAge(dob, c.now())
}

// Now returns the coordinator's current time.
func (c *Coordinator) Now() time.Time {
	return c.now()
}
