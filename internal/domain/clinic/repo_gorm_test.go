package clinic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cliniccare/clinic/internal/platform/changefeed"
	"github.com/cliniccare/clinic/internal/platform/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, db.DriverSQLite, filepath.Join(t.TempDir(), "clinic.db"))
}

// openTestStore opens driver at url with an empty, current schema.
func openTestStore(t *testing.T, driver, url string) *Store {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, db.Options{
		Driver: driver,
		URL:    url,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("db.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close(gdb) })

	m, err := db.NewDialectMigrator(gdb, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDialectMigrator() error: %v", err)
	}
	if driver == db.DriverPostgres {
		err = m.Reset(ctx)
	} else {
		_, err = m.Up(ctx)
	}
	if err != nil {
		t.Fatalf("schema setup error: %v", err)
	}
	return NewStore(gdb, changefeed.NewHub())
}

// testDrivers lists the databases store tests run against. Postgres joins
// when CLINIC_TEST_POSTGRES_URL points at a disposable database.
func testDrivers(t *testing.T) map[string]func(t *testing.T) *Store {
	t.Helper()
	drivers := map[string]func(t *testing.T) *Store{
		db.DriverSQLite: newTestStore,
	}
	if url := os.Getenv("CLINIC_TEST_POSTGRES_URL"); url != "" {
		drivers[db.DriverPostgres] = func(t *testing.T) *Store {
			return openTestStore(t, db.DriverPostgres, url)
		}
	}
	return drivers
}

func insertPatient(t *testing.T, s *Store, name, phone string) int64 {
	t.Helper()
	id, err := s.Patients.Insert(context.Background(), &PatientRecord{
		Name: name, Gender: "Female", DateOfBirth: "1992-03-15", Age: 33, Phone: phone, Address: "1 Main St",
	})
	if err != nil {
		t.Fatalf("insert patient %s: %v", name, err)
	}
	return id
}

func insertDoctor(t *testing.T, s *Store, name, specialty string) int64 {
	t.Helper()
	id, err := s.Doctors.Insert(context.Background(), &DoctorRecord{
		Name: name, Specialty: specialty, Phone: "+1 555-0200", Email: "doc@clinic.test",
	})
	if err != nil {
		t.Fatalf("insert doctor %s: %v", name, err)
	}
	return id
}

func insertAppointment(t *testing.T, s *Store, patientID, doctorID int64, date, tm, status string) int64 {
	t.Helper()
	id, err := s.Appointments.Insert(context.Background(), &AppointmentRecord{
		PatientID: patientID, DoctorID: doctorID, Date: date, Time: tm, Reason: "Checkup", Status: status,
	})
	if err != nil {
		t.Fatalf("insert appointment: %v", err)
	}
	return id
}

func insertTreatment(t *testing.T, s *Store, appointmentID, patientID int64, date string) int64 {
	t.Helper()
	id, err := s.Treatments.Insert(context.Background(), &TreatmentRecord{
		AppointmentID: appointmentID, PatientID: patientID, Diagnosis: "Cold", Treatment: "Rest", Date: date,
	})
	if err != nil {
		t.Fatalf("insert treatment: %v", err)
	}
	return id
}

func TestStore_PatientRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertPatient(t, s, "Sarah Johnson", "+1 555-0101")
	if id == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := s.Patients.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got == nil || got.Name != "Sarah Johnson" || got.Age != 33 {
		t.Fatalf("unexpected patient %+v", got)
	}

	got.Phone = "+1 555-9999"
	if err := s.Patients.Update(ctx, got); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	again, _ := s.Patients.GetByID(ctx, id)
	if again.Phone != "+1 555-9999" {
		t.Errorf("expected updated phone, got %s", again.Phone)
	}

	if err := s.Patients.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	gone, err := s.Patients.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if gone != nil {
		t.Errorf("expected nil after delete, got %+v", gone)
	}
}

func TestStore_InsertReplacesSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pid := insertPatient(t, s, "Michael Chen", "+1 555-0102")
	did := insertDoctor(t, s, "Dr. Lisa Martinez", "General Practitioner")
	insertAppointment(t, s, pid, did, "2025-11-20", "10:30", "Upcoming")

	_, err := s.Patients.Insert(ctx, &PatientRecord{
		ID: pid, Name: "Michael Chen Jr", Gender: "Male", DateOfBirth: "1985-07-22", Age: 40, Phone: "+1 555-0102", Address: "2 Main St",
	})
	if err != nil {
		t.Fatalf("replace error: %v", err)
	}

	n, _ := s.Patients.Count(ctx)
	if n != 1 {
		t.Errorf("expected 1 patient after replace, got %d", n)
	}
	got, _ := s.Patients.GetByID(ctx, pid)
	if got.Name != "Michael Chen Jr" {
		t.Errorf("expected replaced name, got %s", got.Name)
	}
	appts, _ := s.Appointments.ListByPatient(ctx, pid)
	if len(appts) != 1 {
		t.Errorf("replace must not cascade, got %d appointments", len(appts))
	}
}

func TestStore_UpdateMissingRowIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	err := s.Doctors.Update(context.Background(), &DoctorRecord{ID: 42, Name: "Nobody", Specialty: "None", Phone: "1", Email: "a@b"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	n, _ := s.Doctors.Count(context.Background())
	if n != 0 {
		t.Errorf("update must not insert, got %d doctors", n)
	}
}

func TestStore_DeletePatientCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1 := insertPatient(t, s, "Emily Rodriguez", "+1 555-0103")
	p2 := insertPatient(t, s, "James Williams", "+1 555-0104")
	d := insertDoctor(t, s, "Dr. David Kumar", "Pediatrician")
	a1 := insertAppointment(t, s, p1, d, "2025-11-18", "14:00", "Completed")
	a2 := insertAppointment(t, s, p2, d, "2025-11-15", "11:00", "Completed")
	insertTreatment(t, s, a1, p1, "2025-11-18")
	insertTreatment(t, s, a2, p2, "2025-11-15")

	if err := s.Patients.Delete(ctx, p1); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	appts, _ := s.Appointments.List(ctx)
	if len(appts) != 1 || appts[0].ID != a2 {
		t.Errorf("expected only appointment %d to remain, got %+v", a2, appts)
	}
	treatments, _ := s.Treatments.List(ctx)
	if len(treatments) != 1 || treatments[0].PatientID != p2 {
		t.Errorf("expected only patient %d's treatment to remain, got %+v", p2, treatments)
	}
}

func TestStore_DeleteDoctorCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := insertPatient(t, s, "Olivia Brown", "+1 555-0105")
	d1 := insertDoctor(t, s, "Dr. Jennifer Lee", "Dermatologist")
	d2 := insertDoctor(t, s, "Dr. Robert Anderson", "Cardiologist")
	a1 := insertAppointment(t, s, p, d1, "2025-11-23", "15:30", "Upcoming")
	a2 := insertAppointment(t, s, p, d2, "2025-11-22", "09:00", "Upcoming")
	insertTreatment(t, s, a1, p, "2025-11-23")

	if err := s.Doctors.Delete(ctx, d1); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if n, _ := s.Patients.Count(ctx); n != 1 {
		t.Errorf("patient must survive doctor delete, got %d", n)
	}
	appts, _ := s.Appointments.List(ctx)
	if len(appts) != 1 || appts[0].ID != a2 {
		t.Errorf("expected appointment %d to remain, got %+v", a2, appts)
	}
	if n, _ := s.Treatments.Count(ctx); n != 0 {
		t.Errorf("expected treatment to cascade, got %d", n)
	}
}

func TestStore_ForeignKeyViolation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Appointments.Insert(context.Background(), &AppointmentRecord{
		PatientID: 99, DoctorID: 99, Date: "2025-11-20", Time: "10:00", Reason: "x", Status: "Upcoming",
	})
	if !errors.Is(err, db.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestStore_SearchPatients(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertPatient(t, s, "Sarah Johnson", "+1 555-0101")
	insertPatient(t, s, "Michael Chen", "+1 555-0102")
	insertPatient(t, s, "Anna Smith", "+1 555-7777")

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Anna Smith", "Michael Chen", "Sarah Johnson"}},
		{"  ", []string{"Anna Smith", "Michael Chen", "Sarah Johnson"}},
		{"SARAH", []string{"Sarah Johnson"}},
		{"chen", []string{"Michael Chen"}},
		{"555-0", []string{"Michael Chen", "Sarah Johnson"}},
		{"7777", []string{"Anna Smith"}},
		{"%", nil},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := s.Patients.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) returned %d rows, want %d", tt.query, len(got), len(tt.want))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("row %d: got %s, want %s", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestStore_SearchDoctorsAndSpecialty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertDoctor(t, s, "Dr. Robert Anderson", "Cardiologist")
	insertDoctor(t, s, "Dr. Lisa Martinez", "General Practitioner")
	insertDoctor(t, s, "Dr. Amy Cole", "Cardiologist")

	got, _ := s.Doctors.Search(ctx, "cardio")
	if len(got) != 2 || got[0].Name != "Dr. Amy Cole" {
		t.Errorf("unexpected search result %+v", got)
	}
	got, _ = s.Doctors.ListBySpecialty(ctx, "General Practitioner")
	if len(got) != 1 || got[0].Name != "Dr. Lisa Martinez" {
		t.Errorf("unexpected specialty result %+v", got)
	}
}

func TestStore_AppointmentOrderingAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := insertPatient(t, s, "Sarah Johnson", "+1 555-0101")
	d := insertDoctor(t, s, "Dr. Robert Anderson", "Cardiologist")
	late := insertAppointment(t, s, p, d, "2025-11-22", "09:00", "Upcoming")
	early := insertAppointment(t, s, p, d, "2025-11-15", "11:00", "Completed")
	mid := insertAppointment(t, s, p, d, "2025-11-18", "14:00", "Cancelled")
	sameDay := insertAppointment(t, s, p, d, "2025-11-22", "08:00", "Upcoming")

	all, _ := s.Appointments.List(ctx)
	wantAll := []int64{late, sameDay, mid, early}
	for i, id := range wantAll {
		if all[i].ID != id {
			t.Fatalf("List order: got %+v, want ids %v", all, wantAll)
		}
	}

	history, _ := s.Appointments.ListByStatus(ctx, "Completed", "Cancelled")
	if len(history) != 2 || history[0].ID != early || history[1].ID != mid {
		t.Errorf("unexpected history %+v", history)
	}

	none, err := s.Appointments.ListByStatus(ctx)
	if err != nil || len(none) != 0 {
		t.Errorf("expected no rows for no statuses, got %v %v", none, err)
	}

	day, _ := s.Appointments.ListByDate(ctx, "2025-11-22")
	if len(day) != 2 || day[0].ID != sameDay || day[1].ID != late {
		t.Errorf("unexpected day listing %+v", day)
	}

	if n, _ := s.Appointments.CountByStatus(ctx, "Upcoming"); n != 2 {
		t.Errorf("expected 2 upcoming, got %d", n)
	}
	if n, _ := s.Appointments.CountByDate(ctx, "2025-11-22"); n != 2 {
		t.Errorf("expected 2 on date, got %d", n)
	}
	if n, _ := s.Appointments.CountUpcomingByDoctor(ctx, d); n != 2 {
		t.Errorf("expected 2 upcoming for doctor, got %d", n)
	}
}

func TestStore_TreatmentListings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := insertPatient(t, s, "James Williams", "+1 555-0104")
	d := insertDoctor(t, s, "Dr. Lisa Martinez", "General Practitioner")
	a := insertAppointment(t, s, p, d, "2025-11-15", "11:00", "Completed")
	older := insertTreatment(t, s, a, p, "2025-11-15")
	newer := insertTreatment(t, s, a, p, "2025-11-17")

	byPatient, _ := s.Treatments.ListByPatient(ctx, p)
	if len(byPatient) != 2 || byPatient[0].ID != newer || byPatient[1].ID != older {
		t.Errorf("unexpected order %+v", byPatient)
	}
	byAppt, _ := s.Treatments.ListByAppointment(ctx, a)
	if len(byAppt) != 2 {
		t.Errorf("expected 2 treatments for appointment, got %d", len(byAppt))
	}
}

func TestStore_DeleteNotifiesCascadeTopics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := insertPatient(t, s, "Sarah Johnson", "+1 555-0101")

	sub := s.Changes.Listen(8, TablePatients, TableAppointments, TableTreatments, TableDoctors)
	defer sub.Close()

	if err := s.Patients.Delete(ctx, p); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case evt := <-sub.Send:
			if evt.Type != changefeed.EventDeleted {
				t.Errorf("unexpected event type %s", evt.Type)
			}
			seen[evt.Topic] = true
		case <-timeout:
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	if seen[TableDoctors] {
		t.Error("patient delete must not notify doctors")
	}
}

// roundTrip inserts rec, reads it back, applies change through update, reads
// it back again and deletes it.
func roundTrip[R comparable](t *testing.T, rec R, insert func(*R) (int64, error), get func(int64) (*R, error),
	setID func(*R, int64), change func(*R), update func(*R) error, remove func(int64) error) {
	t.Helper()

	id, err := insert(&rec)
	if err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected assigned id")
	}
	want := rec
	setID(&want, id)

	got, err := get(id)
	if err != nil || got == nil {
		t.Fatalf("get(%d) = %v, %v", id, got, err)
	}
	if *got != want {
		t.Fatalf("read back %+v, want %+v", *got, want)
	}

	change(&want)
	if err := update(&want); err != nil {
		t.Fatalf("update error: %v", err)
	}
	got, err = get(id)
	if err != nil || got == nil {
		t.Fatalf("get after update = %v, %v", got, err)
	}
	if *got != want {
		t.Fatalf("after update %+v, want %+v", *got, want)
	}

	if err := remove(id); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if got, err := get(id); err != nil || got != nil {
		t.Fatalf("get after delete = %+v, %v", got, err)
	}
}

func TestStore_RoundTripEveryTable(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T, s *Store)
	}{
		{TablePatients, func(t *testing.T, s *Store) {
			ctx := context.Background()
			roundTrip(t,
				PatientRecord{Name: "Sarah Johnson", Gender: "Female", DateOfBirth: "1992-03-15", Age: 33, Phone: "+1 555-0101", Address: "123 Oak Street"},
				func(r *PatientRecord) (int64, error) { return s.Patients.Insert(ctx, r) },
				func(id int64) (*PatientRecord, error) { return s.Patients.GetByID(ctx, id) },
				func(r *PatientRecord, id int64) { r.ID = id },
				func(r *PatientRecord) { r.Address = "9 Elm Road"; r.Age = 34 },
				func(r *PatientRecord) error { return s.Patients.Update(ctx, r) },
				func(id int64) error { return s.Patients.Delete(ctx, id) },
			)
		}},
		{TableDoctors, func(t *testing.T, s *Store) {
			ctx := context.Background()
			roundTrip(t,
				DoctorRecord{Name: "Dr. Robert Anderson", Specialty: "Cardiologist", Phone: "+1 555-0201", Email: "r.anderson@clinicare.com"},
				func(r *DoctorRecord) (int64, error) { return s.Doctors.Insert(ctx, r) },
				func(id int64) (*DoctorRecord, error) { return s.Doctors.GetByID(ctx, id) },
				func(r *DoctorRecord, id int64) { r.ID = id },
				func(r *DoctorRecord) { r.Specialty = "Pediatrician" },
				func(r *DoctorRecord) error { return s.Doctors.Update(ctx, r) },
				func(id int64) error { return s.Doctors.Delete(ctx, id) },
			)
		}},
		{TableAppointments, func(t *testing.T, s *Store) {
			ctx := context.Background()
			p := insertPatient(t, s, "Michael Chen", "+1 555-0102")
			d := insertDoctor(t, s, "Dr. Lisa Martinez", "General Practitioner")
			d2 := insertDoctor(t, s, "Dr. David Kumar", "Dermatologist")
			roundTrip(t,
				AppointmentRecord{PatientID: p, DoctorID: d, Date: "2025-11-20", Time: "10:30", Reason: "Follow-up", Status: "Upcoming"},
				func(r *AppointmentRecord) (int64, error) { return s.Appointments.Insert(ctx, r) },
				func(id int64) (*AppointmentRecord, error) { return s.Appointments.GetByID(ctx, id) },
				func(r *AppointmentRecord, id int64) { r.ID = id },
				func(r *AppointmentRecord) { r.DoctorID = d2; r.Status = "Completed" },
				func(r *AppointmentRecord) error { return s.Appointments.Update(ctx, r) },
				func(id int64) error { return s.Appointments.Delete(ctx, id) },
			)
		}},
		{TableTreatments, func(t *testing.T, s *Store) {
			ctx := context.Background()
			p := insertPatient(t, s, "James Williams", "+1 555-0104")
			d := insertDoctor(t, s, "Dr. Lisa Martinez", "General Practitioner")
			a := insertAppointment(t, s, p, d, "2025-11-15", "11:00", "Completed")
			roundTrip(t,
				TreatmentRecord{AppointmentID: a, PatientID: p, Diagnosis: "Cold", Treatment: "Rest", Notes: "Fluids", Date: "2025-11-15"},
				func(r *TreatmentRecord) (int64, error) { return s.Treatments.Insert(ctx, r) },
				func(id int64) (*TreatmentRecord, error) { return s.Treatments.GetByID(ctx, id) },
				func(r *TreatmentRecord, id int64) { r.ID = id },
				func(r *TreatmentRecord) { r.Notes = ""; r.Diagnosis = "Flu" },
				func(r *TreatmentRecord) error { return s.Treatments.Update(ctx, r) },
				func(id int64) error { return s.Treatments.Delete(ctx, id) },
			)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, newTestStore(t))
		})
	}
}

func TestStore_UpdateForeignKeyViolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := insertPatient(t, s, "Emily Rodriguez", "+1 555-0103")
	d := insertDoctor(t, s, "Dr. David Kumar", "Dermatologist")
	a := insertAppointment(t, s, p, d, "2025-11-20", "14:00", "Upcoming")

	err := s.Appointments.Update(ctx, &AppointmentRecord{
		ID: a, PatientID: p, DoctorID: 999, Date: "2025-11-20", Time: "14:00", Reason: "Exam", Status: "Upcoming",
	})
	if !errors.Is(err, db.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
	got, _ := s.Appointments.GetByID(ctx, a)
	if got == nil || got.DoctorID != d {
		t.Errorf("failed update must leave the row unchanged, got %+v", got)
	}
}

func TestStore_ExplicitIDDoesNotCollideWithGeneratedIDs(t *testing.T) {
	for name, open := range testDrivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			explicit := &PatientRecord{ID: 5, Name: "Robert Taylor", Gender: "Male", DateOfBirth: "1970-01-30", Age: 55, Phone: "+1 555-0105", Address: "5 Pine Lane"}
			if _, err := s.Patients.Insert(ctx, explicit); err != nil {
				t.Fatalf("explicit insert error: %v", err)
			}

			seen := map[int64]bool{5: true}
			for i := 0; i < 6; i++ {
				id := insertPatient(t, s, "Generated", "+1 555-0100")
				if seen[id] {
					t.Fatalf("generated id %d was already in use", id)
				}
				seen[id] = true
			}

			n, _ := s.Patients.Count(ctx)
			if n != 7 {
				t.Errorf("expected 7 patients, got %d", n)
			}
			got, _ := s.Patients.GetByID(ctx, 5)
			if got == nil || got.Name != "Robert Taylor" {
				t.Errorf("explicit row was overwritten: %+v", got)
			}
		})
	}
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []changefeed.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e changefeed.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) take() []changefeed.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func TestStore_WritesPublishThroughPublisher(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := &recordingPublisher{}
	patients := &patientRepoGORM{newTable[PatientRecord](s.DB(), rec, TablePatients)}

	p := &PatientRecord{Name: "Sarah Johnson", Gender: "Female", DateOfBirth: "1992-03-15", Age: 33, Phone: "1", Address: "x"}
	id, err := patients.Insert(ctx, p)
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	evts := rec.take()
	if len(evts) != 1 || evts[0].Type != changefeed.EventCreated || evts[0].Topic != TablePatients || evts[0].ResourceID != formatID(id) {
		t.Fatalf("unexpected insert events %+v", evts)
	}

	if err := patients.Update(ctx, &PatientRecord{ID: id + 100, Name: "Nobody"}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if evts := rec.take(); len(evts) != 0 {
		t.Errorf("update of a missing row must not publish, got %+v", evts)
	}

	if err := patients.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	evts = rec.take()
	if len(evts) != len(cascades[TablePatients]) {
		t.Fatalf("expected one event per cascade topic, got %+v", evts)
	}
	for i, e := range evts {
		if e.Topic != cascades[TablePatients][i] || e.ResourceType != TablePatients {
			t.Errorf("event %d = %+v", i, e)
		}
	}
}
