package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_SetAndListOverrides(t *testing.T) {
	svc, f := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	body := `[{"weekday":2,"shift":"Morning","start_time":"09:00","end_time":"10:30"}]`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doc.ID.String())

	if err := h.SetOverrides(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.doc.ID.String())
	if err := h.ListOverrides(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 override, got %d", len(items))
	}
	if items[0]["end_time"] != "10:30" {
		t.Errorf("expected end_time 10:30, got %v", items[0]["end_time"])
	}
}

func TestHandler_SetOverrides_InvalidShift(t *testing.T) {
	svc, f := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	body := `[{"weekday":2,"shift":"Night","start_time":"09:00","end_time":"10:30"}]`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(f.doc.ID.String())

	err := h.SetOverrides(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_DeleteOverride_BadWeekday(t *testing.T) {
	svc, f := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id", "weekday", "shift")
	c.SetParamValues(f.doc.ID.String(), "monday", "Morning")

	err := h.DeleteOverride(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_DeleteOverride_NotFound(t *testing.T) {
	svc, f := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id", "weekday", "shift")
	c.SetParamValues(f.doc.ID.String(), "2", "Morning")

	err := h.DeleteOverride(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_ListDefaults(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(facilityID.String())

	if err := h.ListDefaults(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"start_time":"08:00"`) {
		t.Errorf("expected the seeded morning default, got %s", rec.Body.String())
	}
}
