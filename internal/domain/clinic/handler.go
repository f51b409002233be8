package clinic

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cliniccare/clinic/internal/platform/db"
	"github.com/cliniccare/clinic/pkg/pagination"
)

const defaultActivityLimit = 50

type Handler struct {
	c *Coordinator
}

func NewHandler(c *Coordinator) *Handler {
	return &Handler{c: c}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
	api.GET("/patients/:id/appointments", h.ListPatientAppointments)
	api.GET("/patients/:id/treatments", h.ListPatientTreatments)

	api.GET("/doctors", h.ListDoctors)
	api.POST("/doctors", h.CreateDoctor)
	api.GET("/doctors/:id", h.GetDoctor)
	api.PUT("/doctors/:id", h.UpdateDoctor)
	api.DELETE("/doctors/:id", h.DeleteDoctor)
	api.GET("/doctors/:id/appointments", h.ListDoctorAppointments)
	api.GET("/doctors/:id/upcoming-count", h.GetDoctorUpcomingCount)

	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment)
	api.GET("/appointments/:id/treatments", h.ListAppointmentTreatments)

	api.GET("/treatments", h.ListTreatments)
	api.POST("/treatments", h.CreateTreatment)
	api.GET("/treatments/:id", h.GetTreatment)
	api.PUT("/treatments/:id", h.UpdateTreatment)
	api.DELETE("/treatments/:id", h.DeleteTreatment)

	api.GET("/dashboard", h.GetDashboard)
	api.GET("/status", h.GetStatus)
	api.DELETE("/status/message", h.AcknowledgeMessage)
	api.GET("/activity", h.ListActivity)
	api.GET("/age", h.GetAge)
}

// writeError maps a write failure to an HTTP error carrying the user-facing
// message.
func writeError(res Result, err error) error {
	msg := res.Message
	if msg == "" {
		msg = UserMessage(err)
	}

	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]string{
			"message": msg,
			"field":   ve.Field,
		})
	case errors.Is(err, ErrClosed), errors.Is(err, ErrNotStarted):
		return echo.NewHTTPError(http.StatusServiceUnavailable, msg)
	case errors.Is(err, db.ErrConstraint):
		return echo.NewHTTPError(http.StatusConflict, msg)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, msg)
	}
}

func readError(err error) error {
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func created(c echo.Context, res Result, err error) error {
	if err != nil {
		return writeError(res, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func updated(c echo.Context, res Result, err error) error {
	if err != nil {
		return writeError(res, err)
	}
	return c.JSON(http.StatusOK, res)
}

func deleted(c echo.Context, res Result, err error) error {
	if err != nil {
		return writeError(res, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func page[T any](c echo.Context, items []T, err error) error {
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}

func one[T any](c echo.Context, item *T, err error, what string) error {
	if err != nil {
		return readError(err)
	}
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	}
	return c.JSON(http.StatusOK, item)
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// -- Patients --

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.c.SearchPatients(c.QueryParam("q")).Get(c.Request().Context())
	return page(c, items, err)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := bind(c, &p); err != nil {
		return err
	}
	res, err := h.c.AddPatient(c.Request().Context(), p)
	return created(c, res, err)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.c.Patient(c.Param("id")).Get(c.Request().Context())
	return one(c, p, err, "patient")
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var p Patient
	if err := bind(c, &p); err != nil {
		return err
	}
	p.ID = c.Param("id")
	res, err := h.c.UpdatePatient(c.Request().Context(), p)
	return updated(c, res, err)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	res, err := h.c.DeletePatient(c.Request().Context(), c.Param("id"))
	return deleted(c, res, err)
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	items, err := h.c.AppointmentsByPatient(c.Param("id")).Get(c.Request().Context())
	return page(c, items, err)
}

func (h *Handler) ListPatientTreatments(c echo.Context) error {
	items, err := h.c.TreatmentsByPatient(c.Param("id")).Get(c.Request().Context())
	return page(c, items, err)
}

// -- Doctors --

func (h *Handler) ListDoctors(c echo.Context) error {
	ctx := c.Request().Context()
	if specialty := strings.TrimSpace(c.QueryParam("specialty")); specialty != "" {
		items, err := h.c.DoctorsBySpecialty(specialty).Get(ctx)
		return page(c, items, err)
	}
	items, err := h.c.SearchDoctors(c.QueryParam("q")).Get(ctx)
	return page(c, items, err)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := bind(c, &d); err != nil {
		return err
	}
	res, err := h.c.AddDoctor(c.Request().Context(), d)
	return created(c, res, err)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.c.Doctor(c.Param("id")).Get(c.Request().Context())
	return one(c, d, err, "doctor")
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	var d Doctor
	if err := bind(c, &d); err != nil {
		return err
	}
	d.ID = c.Param("id")
	res, err := h.c.UpdateDoctor(c.Request().Context(), d)
	return updated(c, res, err)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	res, err := h.c.DeleteDoctor(c.Request().Context(), c.Param("id"))
	return deleted(c, res, err)
}

func (h *Handler) ListDoctorAppointments(c echo.Context) error {
	items, err := h.c.AppointmentsByDoctor(c.Param("id")).Get(c.Request().Context())
	return page(c, items, err)
}

func (h *Handler) GetDoctorUpcomingCount(c echo.Context) error {
	n, err := h.c.UpcomingCountForDoctor(c.Param("id")).Get(c.Request().Context())
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"upcoming": n})
}

// -- Appointments --

// ListAppointments filters by ?date= or by one or more ?status= values
// (repeated or comma separated). Without a filter it lists everything.
func (h *Handler) ListAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	if date := strings.TrimSpace(c.QueryParam("date")); date != "" {
		items, err := h.c.AppointmentsByDate(date).Get(ctx)
		return page(c, items, err)
	}

	var statuses []AppointmentStatus
	for _, raw := range c.QueryParams()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, ParseStatus(s))
			}
		}
	}
	if len(statuses) > 0 {
		items, err := h.c.AppointmentsByStatus(statuses...).Get(ctx)
		return page(c, items, err)
	}

	items, err := h.c.AppointmentList().Get(ctx)
	return page(c, items, err)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := bind(c, &a); err != nil {
		return err
	}
	res, err := h.c.AddAppointment(c.Request().Context(), a)
	return created(c, res, err)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.c.Appointment(c.Param("id")).Get(c.Request().Context())
	return one(c, a, err, "appointment")
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var a Appointment
	if err := bind(c, &a); err != nil {
		return err
	}
	a.ID = c.Param("id")
	res, err := h.c.UpdateAppointment(c.Request().Context(), a)
	return updated(c, res, err)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	res, err := h.c.DeleteAppointment(c.Request().Context(), c.Param("id"))
	return deleted(c, res, err)
}

func (h *Handler) ListAppointmentTreatments(c echo.Context) error {
	items, err := h.c.TreatmentsByAppointment(c.Param("id")).Get(c.Request().Context())
	return page(c, items, err)
}

// -- Treatments --

func (h *Handler) ListTreatments(c echo.Context) error {
	items, err := h.c.TreatmentList().Get(c.Request().Context())
	return page(c, items, err)
}

func (h *Handler) CreateTreatment(c echo.Context) error {
	var t Treatment
	if err := bind(c, &t); err != nil {
		return err
	}
	res, err := h.c.AddTreatment(c.Request().Context(), t)
	return created(c, res, err)
}

func (h *Handler) GetTreatment(c echo.Context) error {
	t, err := h.c.Treatment(c.Param("id")).Get(c.Request().Context())
	return one(c, t, err, "treatment")
}

func (h *Handler) UpdateTreatment(c echo.Context) error {
	var t Treatment
	if err := bind(c, &t); err != nil {
		return err
	}
	t.ID = c.Param("id")
	res, err := h.c.UpdateTreatment(c.Request().Context(), t)
	return updated(c, res, err)
}

func (h *Handler) DeleteTreatment(c echo.Context) error {
	res, err := h.c.DeleteTreatment(c.Request().Context(), c.Param("id"))
	return deleted(c, res, err)
}

// -- Summary --

func (h *Handler) GetDashboard(c echo.Context) error {
	d, err := h.c.Dashboard().Get(c.Request().Context())
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.c.Status().Get())
}

func (h *Handler) AcknowledgeMessage(c echo.Context) error {
	h.c.AcknowledgeMessage()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListActivity(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	entries, err := h.c.Activity(limit)
	if err != nil {
		return readError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) GetAge(c echo.Context) error {
	dob := c.QueryParam("dob")
	if strings.TrimSpace(dob) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "dob is required")
	}
	return c.JSON(http.StatusOK, map[string]int{"age": h.c.CalculateAge(dob)})
}
