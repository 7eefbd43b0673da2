package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func newTestRouter() (*Handler, *echo.Echo) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))
	return h, e
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandler_CreateDoctor(t *testing.T) {
	h, e := newTestHandler()
	body := `{"name":"Dr. Rao","working_hours":{"start":"08:00","end":"12:00"},"specialization":"cardiology"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	res := decode(t, rec)
	if res["message"] != "Doctor added successfully" {
		t.Errorf("unexpected message %v", res["message"])
	}
	doc, _ := res["doctor"].(map[string]interface{})
	wh, _ := doc["working_hours"].(map[string]interface{})
	if wh["start"] != "08:00" || wh["end"] != "12:00" {
		t.Errorf("unexpected working hours %v", wh)
	}
}

func TestHandler_CreateDoctor_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	for _, body := range []string{`{}`, `{"name":"Dr. X","working_hours":{"start":"9","end":"17:00"}}`, `{"name":`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.CreateDoctor(c)
		if err == nil {
			t.Errorf("body %s: expected error", body)
			continue
		}
		if code := httpCode(t, err); code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, code)
		}
	}
}

func TestHandler_GetDoctor(t *testing.T) {
	h, e := newTestHandler()
	d := mustCreateDoctor(t, h.svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	if err := h.GetDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetDoctor_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetDoctor(c)
	if code := httpCode(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	handlers := map[string]echo.HandlerFunc{
		"GetDoctor":         h.GetDoctor,
		"GetSlots":          h.GetSlots,
		"GetAppointment":    h.GetAppointment,
		"UpdateAppointment": h.UpdateAppointment,
		"DeleteAppointment": h.DeleteAppointment,
	}
	for name, fn := range handlers {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("not-a-uuid")

		if code := httpCode(t, fn(c)); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, code)
		}
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	h, e := newTestHandler()
	mustCreateDoctor(t, h.svc, nil)
	mustCreateDoctor(t, h.svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/?limit=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := decode(t, rec)
	if res["total"] != float64(2) {
		t.Errorf("expected total 2, got %v", res["total"])
	}
	if data, _ := res["data"].([]interface{}); len(data) != 1 {
		t.Errorf("expected 1 item, got %v", res["data"])
	}
	if res["has_more"] != true {
		t.Errorf("expected has_more, got %v", res["has_more"])
	}
}

func TestHandler_GetSlots(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)

	rec := doJSON(e, http.MethodGet, "/api/doctors/"+d.ID.String()+"/slots?date=2025-03-11", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode(t, rec)
	slots, _ := res["slots"].([]interface{})
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if slots[0] != "2025-03-11T09:00:00Z" {
		t.Errorf("expected first slot 2025-03-11T09:00:00Z, got %v", slots[0])
	}
	if _, ok := res["doctor"].(map[string]interface{}); !ok {
		t.Error("expected doctor in response")
	}
}

func TestHandler_GetSlots_Errors(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)

	tests := []struct {
		path string
		code int
	}{
		{"/api/doctors/" + d.ID.String() + "/slots", http.StatusBadRequest},
		{"/api/doctors/" + d.ID.String() + "/slots?date=bogus", http.StatusBadRequest},
		{"/api/doctors/" + d.ID.String() + "/slots?date=2025-03-21", http.StatusBadRequest},
		{"/api/doctors/" + d.ID.String() + "/slots?date=2025-03-01", http.StatusBadRequest},
		{"/api/doctors/" + uuid.New().String() + "/slots?date=2025-03-11", http.StatusNotFound},
	}
	for _, tc := range tests {
		rec := doJSON(e, http.MethodGet, tc.path, "")
		if rec.Code != tc.code {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.code, rec.Code)
		}
		if _, ok := decode(t, rec)["message"]; !ok {
			t.Errorf("%s: expected message in body", tc.path)
		}
	}
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)

	body := `{"doctor_id":"` + d.ID.String() + `","date":"2025-03-11T10:00:00Z","duration":30,"patient_name":"Asha","appointment_type":"checkup","notes":"bring reports"}`
	rec := doJSON(e, http.MethodPost, "/api/appointments", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	appt, _ := decode(t, rec)["appointment"].(map[string]interface{})
	if appt["date"] != "2025-03-11T10:00:00Z" {
		t.Errorf("unexpected date %v", appt["date"])
	}
	if appt["duration"] != float64(30) {
		t.Errorf("unexpected duration %v", appt["duration"])
	}
	doc, _ := appt["doctor"].(map[string]interface{})
	if doc["id"] != d.ID.String() {
		t.Errorf("expected populated doctor, got %v", appt["doctor"])
	}
}

func TestHandler_CreateAppointment_Conflict(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)

	first := `{"doctor_id":"` + d.ID.String() + `","date":"2025-03-11T10:00:00Z","duration":30,"patient_name":"Asha","appointment_type":"checkup"}`
	if rec := doJSON(e, http.MethodPost, "/api/appointments", first); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	second := `{"doctor_id":"` + d.ID.String() + `","date":"2025-03-11T10:15:00Z","duration":30,"patient_name":"Ravi","appointment_type":"checkup"}`
	rec := doJSON(e, http.MethodPost, "/api/appointments", second)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	res := decode(t, rec)
	if res["message"] != "time slot unavailable" {
		t.Errorf("unexpected message %v", res["message"])
	}
	if res["suggestion"] == nil {
		t.Error("expected suggestion")
	}
}

func TestHandler_CreateAppointment_OutsideHours(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)

	body := `{"doctor_id":"` + d.ID.String() + `","date":"2025-03-11T08:00:00Z","duration":30,"patient_name":"Asha","appointment_type":"checkup"}`
	rec := doJSON(e, http.MethodPost, "/api/appointments", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	res := decode(t, rec)
	if res["message"] != "outside working hours" {
		t.Errorf("unexpected message %v", res["message"])
	}
	wh, _ := res["working_hours"].(map[string]interface{})
	if wh["start"] != "09:00" || wh["end"] != "17:00" {
		t.Errorf("expected bounds echoed, got %v", res["working_hours"])
	}
}

func TestHandler_CreateAppointment_BadRequest(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)
	id := d.ID.String()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing fields", `{"doctor_id":"` + id + `"}`, http.StatusBadRequest},
		{"duration as string", `{"doctor_id":"` + id + `","date":"2025-03-11T10:00:00Z","duration":"30","patient_name":"A","appointment_type":"x"}`, http.StatusBadRequest},
		{"duration too long", `{"doctor_id":"` + id + `","date":"2025-03-11T10:00:00Z","duration":300,"patient_name":"A","appointment_type":"x"}`, http.StatusBadRequest},
		{"bad date", `{"doctor_id":"` + id + `","date":"soon","duration":30,"patient_name":"A","appointment_type":"x"}`, http.StatusBadRequest},
		{"unknown doctor", `{"doctor_id":"` + uuid.New().String() + `","date":"2025-03-11T10:00:00Z","duration":30,"patient_name":"A","appointment_type":"x"}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(e, http.MethodPost, "/api/appointments", tc.body)
			if rec.Code != tc.code {
				t.Errorf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_UpdateAppointment(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)
	a := mustBook(t, h, d.ID, "2025-03-11T10:00:00Z")
	b := mustBook(t, h, d.ID, "2025-03-11T11:00:00Z")

	rec := doJSON(e, http.MethodPut, "/api/appointments/"+a.ID.String(), `{"date":"2025-03-11T10:15:00Z","duration":30}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	appt, _ := decode(t, rec)["appointment"].(map[string]interface{})
	if appt["date"] != "2025-03-11T10:15:00Z" {
		t.Errorf("unexpected date %v", appt["date"])
	}

	rec = doJSON(e, http.MethodPut, "/api/appointments/"+a.ID.String(), `{"date":"2025-03-11T11:15:00Z","duration":30}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on overlap with %s, got %d", b.ID, rec.Code)
	}

	rec = doJSON(e, http.MethodPut, "/api/appointments/"+a.ID.String(), `{"date":"2025-03-11T12:00:00Z"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing duration, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPut, "/api/appointments/"+uuid.New().String(), `{"date":"2025-03-11T12:00:00Z","duration":30}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_DeleteAppointment(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)
	a := mustBook(t, h, d.ID, "2025-03-11T10:00:00Z")

	rec := doJSON(e, http.MethodDelete, "/api/appointments/"+a.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	res := decode(t, rec)
	if res["message"] != "Appointment canceled successfully" {
		t.Errorf("unexpected message %v", res["message"])
	}
	appt, _ := res["appointment"].(map[string]interface{})
	if appt["id"] != a.ID.String() {
		t.Errorf("expected deleted appointment in body, got %v", res["appointment"])
	}

	rec = doJSON(e, http.MethodDelete, "/api/appointments/"+a.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetAndListAppointments(t *testing.T) {
	h, e := newTestRouter()
	d := mustCreateDoctor(t, h.svc, nil)
	a := mustBook(t, h, d.ID, "2025-03-11T10:00:00Z")

	rec := doJSON(e, http.MethodGet, "/api/appointments/"+a.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := decode(t, rec)["appointment"].(map[string]interface{}); !ok {
		t.Error("expected appointment wrapper")
	}

	rec = doJSON(e, http.MethodGet, "/api/appointments?doctor_id="+d.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["total"] != float64(1) {
		t.Error("expected 1 appointment")
	}

	rec = doJSON(e, http.MethodGet, "/api/appointments?doctor_id=xyz", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad doctor_id, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/appointments/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func mustBook(t *testing.T, h *Handler, doctorID uuid.UUID, date string) *AppointmentView {
	t.Helper()
	v, err := h.svc.CreateAppointment(context.Background(), bookReq(doctorID, date, 30))
	if err != nil {
		t.Fatalf("book %s: %v", date, err)
	}
	return v
}
