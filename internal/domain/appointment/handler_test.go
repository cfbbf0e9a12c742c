package appointment

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
	return NewHandler(newTestService()), echo.New()
}

func seed(t *testing.T, h *Handler) *Appointment {
	t.Helper()
	a := validAppointment()
	a.Notes = "primeira consulta"
	if err := h.svc.Create(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func TestHandler_Create(t *testing.T) {
	h, e := newTestHandler()
	body := `{"paciente_id":"` + uuid.New().String() + `","data_consulta":"2024-06-09","hora_consulta":"14:00","tipo_consulta":"retorno"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp MutationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.ID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if !strings.Contains(rec.Body.String(), `"status":"agendado"`) {
		t.Errorf("expected wire status in body, got %s", rec.Body.String())
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err == nil {
		t.Error("expected error for missing fields")
	}
}

func TestHandler_List(t *testing.T) {
	h, e := newTestHandler()
	seed(t, h)
	req := httptest.NewRequest(http.MethodGet, "/?status=agendado", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Appointments) != 1 {
		t.Errorf("expected one appointment, got %+v", resp)
	}
	if resp.Appointments[0].Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", resp.Appointments[0].Status)
	}
}

func TestHandler_List_BadFilter(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?data_inicio=ontem", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err == nil {
		t.Error("expected error for bad date filter")
	}
}

func TestHandler_Get(t *testing.T) {
	h, e := newTestHandler()
	a := seed(t, h)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID)

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp GetResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Appointment == nil || resp.Appointment.ID != a.ID {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.Get(c); err == nil {
		t.Error("expected error for invalid id")
	}
}

func TestHandler_Update_StatusOnly(t *testing.T) {
	h, e := newTestHandler()
	a := seed(t, h)
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"status":"realizado"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID)

	if err := h.Update(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := h.svc.Get(context.Background(), uuid.MustParse(a.ID))
	if got.Status != StatusDone {
		t.Errorf("expected done, got %s", got.Status)
	}
	if got.Notes != "primeira consulta" {
		t.Errorf("notes should be untouched, got %q", got.Notes)
	}
}

func TestHandler_Update_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"status":"falta"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Update(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, e := newTestHandler()
	a := seed(t, h)
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID)

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
