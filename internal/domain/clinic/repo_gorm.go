package clinic

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cliniccare/clinic/internal/platform/changefeed"
	"github.com/cliniccare/clinic/internal/platform/db"
)

// cascades lists, per table, every table whose rows a delete on it can
// remove through ON DELETE CASCADE.
var cascades = map[string][]string{
	TablePatients:     {TablePatients, TableAppointments, TableTreatments},
	TableDoctors:      {TableDoctors, TableAppointments, TableTreatments},
	TableAppointments: {TableAppointments, TableTreatments},
	TableTreatments:   {TableTreatments},
}

// Store is the persistent store: one repository per table sharing a
// database handle and a change hub.
type Store struct {
	Patients     PatientRepository
	Doctors      DoctorRepository
	Appointments AppointmentRepository
	Treatments   TreatmentRepository
	Changes      *changefeed.Hub

	db *gorm.DB
}

// NewStore wires the GORM repositories to gdb. Every committed write is
// published on hub.
func NewStore(gdb *gorm.DB, hub *changefeed.Hub) *Store {
	return &Store{
		Patients:     &patientRepoGORM{newTable[PatientRecord](gdb, hub, TablePatients)},
		Doctors:      &doctorRepoGORM{newTable[DoctorRecord](gdb, hub, TableDoctors)},
		Appointments: &appointmentRepoGORM{newTable[AppointmentRecord](gdb, hub, TableAppointments)},
		Treatments:   &treatmentRepoGORM{newTable[TreatmentRecord](gdb, hub, TableTreatments)},
		Changes:      hub,
		db:           gdb,
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// table holds the operations every clinic table shares.
type table[R any] struct {
	db   *gorm.DB
	pub  changefeed.Publisher
	name string
}

func newTable[R any](gdb *gorm.DB, pub changefeed.Publisher, name string) table[R] {
	return table[R]{db: gdb, pub: pub, name: name}
}

// notify publishes one event per topic. The row is already committed, so a
// publish failure does not fail the write.
func (t table[R]) notify(ctx context.Context, eventType string, id int64, topics []string) {
	if t.pub == nil {
		return
	}
	for _, topic := range topics {
		_ = t.pub.Publish(ctx, changefeed.Event{
			Type:         eventType,
			Topic:        topic,
			ResourceType: t.name,
			ResourceID:   formatID(id),
		})
	}
}

// upsert inserts rec. A record without an id gets the next generated one; a
// record carrying an id replaces the row with that id in place.
func (t table[R]) upsert(ctx context.Context, rec *R, id func() int64) (int64, error) {
	var err error
	if id() == 0 {
		err = t.db.WithContext(ctx).Create(rec).Error
	} else {
		err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(rec).Error
			if err != nil {
				return err
			}
			return t.syncSequence(tx)
		})
	}
	if err != nil {
		return 0, db.Classify("insert "+t.name, err)
	}
	t.notify(ctx, changefeed.EventCreated, id(), []string{t.name})
	return id(), nil
}

// syncSequence moves a Postgres id sequence past the largest stored id, so
// later generated ids never collide with an explicitly supplied one. SQLite
// AUTOINCREMENT already tracks the maximum.
func (t table[R]) syncSequence(tx *gorm.DB) error {
	if tx.Dialector.Name() != db.DriverPostgres {
		return nil
	}
	return tx.Exec(fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), (SELECT MAX(id) FROM %[1]s))", t.name,
	)).Error
}

// update overwrites the listed columns of row id. A missing row is not an
// error.
func (t table[R]) update(ctx context.Context, rec *R, id int64, columns ...string) error {
	if id == 0 {
		return nil
	}
	res := t.db.WithContext(ctx).
		Model(new(R)).
		Where("id = ?", id).
		Select(columns).
		Updates(rec)
	if res.Error != nil {
		return db.Classify("update "+t.name, res.Error)
	}
	if res.RowsAffected > 0 {
		t.notify(ctx, changefeed.EventUpdated, id, []string{t.name})
	}
	return nil
}

// remove deletes row id; the database cascades to dependents.
func (t table[R]) remove(ctx context.Context, id int64) error {
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(new(R))
	if res.Error != nil {
		return db.Classify("delete "+t.name, res.Error)
	}
	if res.RowsAffected > 0 {
		t.notify(ctx, changefeed.EventDeleted, id, cascades[t.name])
	}
	return nil
}

func (t table[R]) get(ctx context.Context, id int64) (*R, error) {
	var recs []R
	err := t.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&recs).Error
	if err != nil {
		return nil, db.Classify("get "+t.name, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (t table[R]) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]R, error) {
	recs := []R{}
	if err := scope(t.db.WithContext(ctx).Model(new(R))).Find(&recs).Error; err != nil {
		return nil, db.Classify("list "+t.name, err)
	}
	return recs, nil
}

func (t table[R]) count(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (int64, error) {
	var n int64
	if err := scope(t.db.WithContext(ctx).Model(new(R))).Count(&n).Error; err != nil {
		return 0, db.Classify("count "+t.name, err)
	}
	return n, nil
}

func all(q *gorm.DB) *gorm.DB { return q }

// likePattern builds a case-insensitive substring pattern for
// LOWER(col) LIKE ? ESCAPE '\'.
func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

// -- Patients --

type patientRepoGORM struct {
	t table[PatientRecord]
}

var patientColumns = []string{"name", "gender", "date_of_birth", "age", "phone", "address"}

func (r *patientRepoGORM) Insert(ctx context.Context, p *PatientRecord) (int64, error) {
	return r.t.upsert(ctx, p, func() int64 { return p.ID })
}

func (r *patientRepoGORM) Update(ctx context.Context, p *PatientRecord) error {
	return r.t.update(ctx, p, p.ID, patientColumns...)
}

func (r *patientRepoGORM) Delete(ctx context.Context, id int64) error {
	return r.t.remove(ctx, id)
}

func (r *patientRepoGORM) GetByID(ctx context.Context, id int64) (*PatientRecord, error) {
	return r.t.get(ctx, id)
}

func (r *patientRepoGORM) List(ctx context.Context) ([]PatientRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Order("name ASC").Order("id ASC")
	})
}

func (r *patientRepoGORM) Search(ctx context.Context, query string) ([]PatientRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.List(ctx)
	}
	pattern := likePattern(query)
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(phone) LIKE ? ESCAPE '\'`, pattern, pattern).
			Order("name ASC").Order("id ASC")
	})
}

func (r *patientRepoGORM) Count(ctx context.Context) (int64, error) {
	return r.t.count(ctx, all)
}

// -- Doctors --

type doctorRepoGORM struct {
	t table[DoctorRecord]
}

var doctorColumns = []string{"name", "specialty", "phone", "email"}

func (r *doctorRepoGORM) Insert(ctx context.Context, d *DoctorRecord) (int64, error) {
	return r.t.upsert(ctx, d, func() int64 { return d.ID })
}

func (r *doctorRepoGORM) Update(ctx context.Context, d *DoctorRecord) error {
	return r.t.update(ctx, d, d.ID, doctorColumns...)
}

func (r *doctorRepoGORM) Delete(ctx context.Context, id int64) error {
	return r.t.remove(ctx, id)
}

func (r *doctorRepoGORM) GetByID(ctx context.Context, id int64) (*DoctorRecord, error) {
	return r.t.get(ctx, id)
}

func (r *doctorRepoGORM) List(ctx context.Context) ([]DoctorRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Order("name ASC").Order("id ASC")
	})
}

func (r *doctorRepoGORM) Search(ctx context.Context, query string) ([]DoctorRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.List(ctx)
	}
	pattern := likePattern(query)
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(specialty) LIKE ? ESCAPE '\'`, pattern, pattern).
			Order("name ASC").Order("id ASC")
	})
}

func (r *doctorRepoGORM) ListBySpecialty(ctx context.Context, specialty string) ([]DoctorRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("specialty = ?", specialty).Order("name ASC").Order("id ASC")
	})
}

func (r *doctorRepoGORM) Count(ctx context.Context) (int64, error) {
	return r.t.count(ctx, all)
}

// -- Appointments --

type appointmentRepoGORM struct {
	t table[AppointmentRecord]
}

var appointmentColumns = []string{"patient_id", "doctor_id", "date", "time", "reason", "status"}

func newestFirst(q *gorm.DB) *gorm.DB {
	return q.Order("date DESC").Order("time DESC").Order("id DESC")
}

func (r *appointmentRepoGORM) Insert(ctx context.Context, a *AppointmentRecord) (int64, error) {
	return r.t.upsert(ctx, a, func() int64 { return a.ID })
}

func (r *appointmentRepoGORM) Update(ctx context.Context, a *AppointmentRecord) error {
	return r.t.update(ctx, a, a.ID, appointmentColumns...)
}

func (r *appointmentRepoGORM) Delete(ctx context.Context, id int64) error {
	return r.t.remove(ctx, id)
}

func (r *appointmentRepoGORM) GetByID(ctx context.Context, id int64) (*AppointmentRecord, error) {
	return r.t.get(ctx, id)
}

func (r *appointmentRepoGORM) List(ctx context.Context) ([]AppointmentRecord, error) {
	return r.t.find(ctx, newestFirst)
}

func (r *appointmentRepoGORM) ListByPatient(ctx context.Context, patientID int64) ([]AppointmentRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return newestFirst(q.Where("patient_id = ?", patientID))
	})
}

func (r *appointmentRepoGORM) ListByDoctor(ctx context.Context, doctorID int64) ([]AppointmentRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return newestFirst(q.Where("doctor_id = ?", doctorID))
	})
}

func (r *appointmentRepoGORM) ListByStatus(ctx context.Context, statuses ...string) ([]AppointmentRecord, error) {
	if len(statuses) == 0 {
		return []AppointmentRecord{}, nil
	}
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("status IN ?", statuses).Order("date ASC").Order("time ASC").Order("id ASC")
	})
}

func (r *appointmentRepoGORM) ListByDate(ctx context.Context, date string) ([]AppointmentRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("date = ?", date).Order("time ASC").Order("id ASC")
	})
}

func (r *appointmentRepoGORM) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.t.count(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", status)
	})
}

func (r *appointmentRepoGORM) CountByDate(ctx context.Context, date string) (int64, error) {
	return r.t.count(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("date = ?", date)
	})
}

func (r *appointmentRepoGORM) CountUpcomingByDoctor(ctx context.Context, doctorID int64) (int64, error) {
	return r.t.count(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("doctor_id = ? AND status = ?", doctorID, string(StatusUpcoming))
	})
}

// -- Treatments --

type treatmentRepoGORM struct {
	t table[TreatmentRecord]
}

var treatmentColumns = []string{"appointment_id", "patient_id", "diagnosis", "treatment", "notes", "date"}

func byDateDesc(q *gorm.DB) *gorm.DB {
	return q.Order("date DESC").Order("id DESC")
}

func (r *treatmentRepoGORM) Insert(ctx context.Context, t *TreatmentRecord) (int64, error) {
	return r.t.upsert(ctx, t, func() int64 { return t.ID })
}

func (r *treatmentRepoGORM) Update(ctx context.Context, t *TreatmentRecord) error {
	return r.t.update(ctx, t, t.ID, treatmentColumns...)
}

func (r *treatmentRepoGORM) Delete(ctx context.Context, id int64) error {
	return r.t.remove(ctx, id)
}

func (r *treatmentRepoGORM) GetByID(ctx context.Context, id int64) (*TreatmentRecord, error) {
	return r.t.get(ctx, id)
}

func (r *treatmentRepoGORM) List(ctx context.Context) ([]TreatmentRecord, error) {
	return r.t.find(ctx, byDateDesc)
}

func (r *treatmentRepoGORM) ListByPatient(ctx context.Context, patientID int64) ([]TreatmentRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return byDateDesc(q.Where("patient_id = ?", patientID))
	})
}

func (r *treatmentRepoGORM) ListByAppointment(ctx context.Context, appointmentID int64) ([]TreatmentRecord, error) {
	return r.t.find(ctx, func(q *gorm.DB) *gorm.DB {
		return byDateDesc(q.Where("appointment_id = ?", appointmentID))
	})
}

func (r *treatmentRepoGORM) Count(ctx context.Context) (int64, error) {
	return r.t.count(ctx, all)
}
