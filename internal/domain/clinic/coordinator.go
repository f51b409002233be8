package clinic

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cliniccare/clinic/internal/platform/changefeed"
	"github.com/cliniccare/clinic/internal/platform/journal"
)

const (
	defaultQueueSize = 64
	defaultRefresh   = time.Minute
)

// Status is the transient state shown alongside any screen: whether a write
// is running and the message produced by the last write.
type Status struct {
	Loading bool   `json:"loading"`
	Message string `json:"message"`
}

// Result is returned by every write. Message is the user-facing outcome,
// "Success: ..." or "Error: ...".
type Result struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock sets the source of "now" used for ages and today's count.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithJournal records every write outcome in j.
func WithJournal(j *journal.Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithRefresh sets how often queries that depend on today's date re-read,
// so their counts follow the calendar without waiting for a write.
func WithRefresh(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.refresh = d
		}
	}
}

// WithQueueSize bounds the number of writes waiting for the worker.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// Coordinator sits between the store and presentation. It publishes live
// lists and counters, validates input and runs every write on a single
// worker in submission order.
type Coordinator struct {
	store     *Store
	logger    zerolog.Logger
	now       func() time.Time
	journal   *journal.Journal
	queueSize int
	refresh   time.Duration

	mu      sync.RWMutex
	started bool
	closed  bool
	jobs    chan *job
	cancel  context.CancelFunc
	worker  sync.WaitGroup
	watches sync.WaitGroup

	patients       *changefeed.Value[[]Patient]
	doctors        *changefeed.Value[[]Doctor]
	appointments   *changefeed.Value[[]Appointment]
	treatments     *changefeed.Value[[]Treatment]
	totalPatients  *changefeed.Value[int64]
	totalDoctors   *changefeed.Value[int64]
	upcomingCount  *changefeed.Value[int64]
	todayCount     *changefeed.Value[int64]
	treatmentCount *changefeed.Value[int64]
	status         *changefeed.Value[Status]
}

type job struct {
	op       string
	entityID string
	success  string
	run      func(ctx context.Context) (int64, error)
	ctx      context.Context
	done     chan outcome
}

type outcome struct {
	res Result
	err error
}

// NewCoordinator creates a coordinator over store. Call Start before
// submitting writes.
func NewCoordinator(store *Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		logger:    zerolog.Nop(),
		now:       time.Now,
		queueSize: defaultQueueSize,
		refresh:   defaultRefresh,

		patients:       changefeed.NewValue([]Patient{}),
		doctors:        changefeed.NewValue([]Doctor{}),
		appointments:   changefeed.NewValue([]Appointment{}),
		treatments:     changefeed.NewValue([]Treatment{}),
		totalPatients:  changefeed.NewValue(int64(0)),
		totalDoctors:   changefeed.NewValue(int64(0)),
		upcomingCount:  changefeed.NewValue(int64(0)),
		todayCount:     changefeed.NewValue(int64(0)),
		treatmentCount: changefeed.NewValue(int64(0)),
		status:         changefeed.NewValue(Status{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the write worker and the watchers feeding the published
// lists and counters. They run until Close or until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.jobs = make(chan *job, c.queueSize)

	c.worker.Add(1)
	go func() {
		defer c.worker.Done()
		c.work()
	}()

	publish(c, ctx, c.PatientList(), c.patients, nil)
	publish(c, ctx, c.DoctorList(), c.doctors, nil)
	publish(c, ctx, c.AppointmentList(), c.appointments, nil)
	publish(c, ctx, c.TreatmentList(), c.treatments, func(ts []Treatment) {
		c.treatmentCount.Set(int64(len(ts)))
	})
	publish(c, ctx, c.countQuery(TablePatients, c.store.Patients.Count), c.totalPatients, nil)
	publish(c, ctx, c.countQuery(TableDoctors, c.store.Doctors.Count), c.totalDoctors, nil)
	publish(c, ctx, c.countQuery(TableAppointments, func(ctx context.Context) (int64, error) {
		return c.store.Appointments.CountByStatus(ctx, string(StatusUpcoming))
	}), c.upcomingCount, nil)
	publish(c, ctx, c.todayQuery(), c.todayCount, nil)
}

// todayQuery counts today's appointments. It re-reads on every appointment
// change and on the refresh interval, so the count moves to the new day.
func (c *Coordinator) todayQuery() changefeed.Query[int64] {
	q := c.countQuery(TableAppointments, func(ctx context.Context) (int64, error) {
		return c.store.Appointments.CountByDate(ctx, c.today())
	})
	q.Every = c.refresh
	return q
}

// publish copies every result of q into v until ctx is done.
func publish[T any](c *Coordinator, ctx context.Context, q changefeed.Query[T], v *changefeed.Value[T], after func(T)) {
	c.watches.Add(1)
	go func() {
		defer c.watches.Done()
		for x := range q.Watch(ctx) {
			v.Set(x)
			if after != nil {
				after(x)
			}
		}
	}()
}

// Close stops accepting writes, finishes the ones already queued, stops the
// watchers and waits for everything to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.started {
		close(c.jobs)
	}
	c.mu.Unlock()

	c.worker.Wait()
	if c.cancel != nil {
		c.cancel()
	}
	c.watches.Wait()
}

func (c *Coordinator) work() {
	for j := range c.jobs {
		c.status.Update(func(s Status) Status {
			s.Loading = true
			return s
		})

		id, err := j.run(j.ctx)

		var out outcome
		if err != nil {
			out.err = &StoreError{Op: j.op, Err: err}
			out.res = Result{ID: j.entityID, Message: UserMessage(out.err)}
		} else {
			if j.entityID != "" {
				out.res.ID = j.entityID
			} else {
				out.res.ID = formatID(id)
			}
			out.res.Message = j.success
		}

		c.status.Set(Status{Loading: false, Message: out.res.Message})
		c.record(j.op, out.res.ID, out.err, out.res.Message)
		j.done <- out
	}
}

// submit queues a validated write and waits for its outcome. The write runs
// to completion even if ctx ends first.
func (c *Coordinator) submit(ctx context.Context, op, entityID, success string, run func(context.Context) (int64, error)) (Result, error) {
	j := &job{
		op:       op,
		entityID: entityID,
		success:  success,
		run:      run,
		ctx:      context.WithoutCancel(ctx),
		done:     make(chan outcome, 1),
	}

	c.mu.RLock()
	switch {
	case c.closed:
		c.mu.RUnlock()
		return Result{Message: UserMessage(ErrClosed)}, ErrClosed
	case !c.started:
		c.mu.RUnlock()
		return Result{Message: UserMessage(ErrNotStarted)}, ErrNotStarted
	}
	c.jobs <- j
	c.mu.RUnlock()

	select {
	case out := <-j.done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// reject publishes a validation failure without touching the store.
func (c *Coordinator) reject(op, entityID string, err error) (Result, error) {
	msg := UserMessage(err)
	c.status.Update(func(s Status) Status {
		s.Message = msg
		return s
	})
	c.record(op, entityID, err, msg)
	return Result{ID: entityID, Message: msg}, err
}

func (c *Coordinator) record(op, entityID string, err error, msg string) {
	evt := c.logger.Info()
	if err != nil {
		evt = c.logger.Warn().Err(err)
	}
	evt.Str("op", op).Str("id", entityID).Msg("write")

	if c.journal == nil {
		return
	}
	if _, jerr := c.journal.Append(journal.Entry{
		At:       c.now().UTC(),
		Op:       op,
		EntityID: entityID,
		OK:       err == nil,
		Message:  msg,
	}); jerr != nil {
		c.logger.Error().Err(jerr).Str("op", op).Msg("journal append failed")
	}
}

// AcknowledgeMessage clears the published message once presentation has
// shown it.
func (c *Coordinator) AcknowledgeMessage() {
	c.status.Update(func(s Status) Status {
		s.Message = ""
		return s
	})
}

func (c *Coordinator) today() string {
	return c.now().Format("2006-01-02")
}

// -- Published state --

func (c *Coordinator) Patients() changefeed.Observable[[]Patient]         { return c.patients }
func (c *Coordinator) Doctors() changefeed.Observable[[]Doctor]           { return c.doctors }
func (c *Coordinator) Appointments() changefeed.Observable[[]Appointment] { return c.appointments }
func (c *Coordinator) Treatments() changefeed.Observable[[]Treatment]     { return c.treatments }
func (c *Coordinator) TotalPatients() changefeed.Observable[int64]        { return c.totalPatients }
func (c *Coordinator) TotalDoctors() changefeed.Observable[int64]         { return c.totalDoctors }
func (c *Coordinator) UpcomingCount() changefeed.Observable[int64]        { return c.upcomingCount }
func (c *Coordinator) TodayCount() changefeed.Observable[int64]           { return c.todayCount }

// TreatmentCount is the length of the published treatment list.
func (c *Coordinator) TreatmentCount() changefeed.Observable[int64] { return c.treatmentCount }

// Status carries the loading flag and the last write's message.
func (c *Coordinator) Status() changefeed.Observable[Status] { return c.status }

// -- Patients --

func (c *Coordinator) AddPatient(ctx context.Context, p Patient) (Result, error) {
	const op = "AddPatient"
	id, err := parseID(p.ID)
	if err != nil {
		return c.reject(op, p.ID, invalid("id", "Invalid patient ID"))
	}
	rec, err := patientRecord(p, c.now())
	if err != nil {
		return c.reject(op, p.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, "", "Success: Patient Added!", func(ctx context.Context) (int64, error) {
		return c.store.Patients.Insert(ctx, rec)
	})
}

func (c *Coordinator) UpdatePatient(ctx context.Context, p Patient) (Result, error) {
	const op = "UpdatePatient"
	id, err := recordID(p.ID, "patient")
	if err != nil {
		return c.reject(op, p.ID, err)
	}
	rec, err := patientRecord(p, c.now())
	if err != nil {
		return c.reject(op, p.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, formatID(id), "Success: Patient Updated!", func(ctx context.Context) (int64, error) {
		return id, c.store.Patients.Update(ctx, rec)
	})
}

func (c *Coordinator) DeletePatient(ctx context.Context, patientID string) (Result, error) {
	const op = "DeletePatient"
	id, err := recordID(patientID, "patient")
	if err != nil {
		return c.reject(op, patientID, err)
	}
	return c.submit(ctx, op, formatID(id), "Success: Patient Deleted!", func(ctx context.Context) (int64, error) {
		return id, c.store.Patients.Delete(ctx, id)
	})
}

// -- Doctors --

func (c *Coordinator) AddDoctor(ctx context.Context, d Doctor) (Result, error) {
	const op = "AddDoctor"
	id, err := parseID(d.ID)
	if err != nil {
		return c.reject(op, d.ID, invalid("id", "Invalid doctor ID"))
	}
	rec, err := doctorRecord(d)
	if err != nil {
		return c.reject(op, d.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, "", "Success: Doctor Added!", func(ctx context.Context) (int64, error) {
		return c.store.Doctors.Insert(ctx, rec)
	})
}

func (c *Coordinator) UpdateDoctor(ctx context.Context, d Doctor) (Result, error) {
	const op = "UpdateDoctor"
	id, err := recordID(d.ID, "doctor")
	if err != nil {
		return c.reject(op, d.ID, err)
	}
	rec, err := doctorRecord(d)
	if err != nil {
		return c.reject(op, d.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, formatID(id), "Success: Doctor Updated!", func(ctx context.Context) (int64, error) {
		return id, c.store.Doctors.Update(ctx, rec)
	})
}

func (c *Coordinator) DeleteDoctor(ctx context.Context, doctorID string) (Result, error) {
	const op = "DeleteDoctor"
	id, err := recordID(doctorID, "doctor")
	if err != nil {
		return c.reject(op, doctorID, err)
	}
	return c.submit(ctx, op, formatID(id), "Success: Doctor Deleted!", func(ctx context.Context) (int64, error) {
		return id, c.store.Doctors.Delete(ctx, id)
	})
}

// -- Appointments --

func (c *Coordinator) AddAppointment(ctx context.Context, a Appointment) (Result, error) {
	const op = "AddAppointment"
	id, err := parseID(a.ID)
	if err != nil {
		return c.reject(op, a.ID, invalid("id", "Invalid appointment ID"))
	}
	rec, err := appointmentRecord(a)
	if err != nil {
		return c.reject(op, a.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, "", "Success: Appointment Scheduled!", func(ctx context.Context) (int64, error) {
		return c.store.Appointments.Insert(ctx, rec)
	})
}

func (c *Coordinator) UpdateAppointment(ctx context.Context, a Appointment) (Result, error) {
	const op = "UpdateAppointment"
	id, err := recordID(a.ID, "appointment")
	if err != nil {
		return c.reject(op, a.ID, err)
	}
	rec, err := appointmentRecord(a)
	if err != nil {
		return c.reject(op, a.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, formatID(id), "Success: Appointment Updated!", func(ctx context.Context) (int64, error) {
		return id, c.store.Appointments.Update(ctx, rec)
	})
}

func (c *Coordinator) DeleteAppointment(ctx context.Context, appointmentID string) (Result, error) {
	const op = "DeleteAppointment"
	id, err := recordID(appointmentID, "appointment")
	if err != nil {
		return c.reject(op, appointmentID, err)
	}
	return c.submit(ctx, op, formatID(id), "Success: Appointment Deleted!", func(ctx context.Context) (int64, error) {
		return id, c.store.Appointments.Delete(ctx, id)
	})
}

// -- Treatments --

func (c *Coordinator) AddTreatment(ctx context.Context, t Treatment) (Result, error) {
	const op = "AddTreatment"
	id, err := parseID(t.ID)
	if err != nil {
		return c.reject(op, t.ID, invalid("id", "Invalid treatment ID"))
	}
	rec, err := treatmentRecord(t)
	if err != nil {
		return c.reject(op, t.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, "", "Success: Treatment Recorded!", func(ctx context.Context) (int64, error) {
		return c.store.Treatments.Insert(ctx, rec)
	})
}

func (c *Coordinator) UpdateTreatment(ctx context.Context, t Treatment) (Result, error) {
	const op = "UpdateTreatment"
	id, err := recordID(t.ID, "treatment")
	if err != nil {
		return c.reject(op, t.ID, err)
	}
	rec, err := treatmentRecord(t)
	if err != nil {
		return c.reject(op, t.ID, err)
	}
	rec.ID = id
	return c.submit(ctx, op, formatID(id), "Success: Treatment Updated!", func(ctx context.Context) (int64, error) {
		return id, c.store.Treatments.Update(ctx, rec)
	})
}

func (c *Coordinator) DeleteTreatment(ctx context.Context, treatmentID string) (Result, error) {
	const op = "DeleteTreatment"
	id, err := recordID(treatmentID, "treatment")
	if err != nil {
		return c.reject(op, treatmentID, err)
	}
	return c.submit(ctx, op, formatID(id), "Success: Treatment Deleted!", func(ctx context.Context) (int64, error) {
		return id, c.store.Treatments.Delete(ctx, id)
	})
}
