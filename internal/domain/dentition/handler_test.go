package dentition

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_ListTeeth(t *testing.T) {
	h, e := NewHandler(), echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListTeeth(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Upper []map[string]string `json:"upper"`
		Lower []map[string]string `json:"lower"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Upper) != 16 || len(body.Lower) != 16 {
		t.Fatalf("expected 16+16 teeth, got %d+%d", len(body.Upper), len(body.Lower))
	}
	if body.Upper[0]["tooth_number"] != "18" {
		t.Errorf("expected first upper tooth 18, got %v", body.Upper[0])
	}
	if body.Upper[0]["kind"] != string(KindMolar) {
		t.Errorf("expected molar, got %v", body.Upper[0]["kind"])
	}
}

func TestHandler_GetSurfaceMap(t *testing.T) {
	h, e := NewHandler(), echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("tooth")
	c.SetParamValues("41")

	if err := h.GetSurfaceMap(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Surfaces []SurfaceSlot `json:"surfaces"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Surfaces) != 5 {
		t.Fatalf("expected 5 surfaces, got %d", len(body.Surfaces))
	}
	if body.Surfaces[1].Position != Up || body.Surfaces[1].SurfaceType != Lingual {
		t.Errorf("expected UP=LINGUAL, got %+v", body.Surfaces[1])
	}
}

func TestHandler_GetSurfaceMap_InvalidTooth(t *testing.T) {
	h, e := NewHandler(), echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("tooth")
	c.SetParamValues("59")

	err := h.GetSurfaceMap(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
