package httperr

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWrite_EnvelopeShape(t *testing.T) {
	rec := httptest.NewRecorder()

	Write(rec, 426, "client too old", "version_error", "client_outdated", map[string]any{
		"minimum_version": "2.0.0",
	})

	if rec.Code != 426 {
		t.Fatalf("status = %d, want 426", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}

	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("body = %#v, want an \"error\" object", body)
	}
	if errObj["message"] != "client too old" || errObj["type"] != "version_error" || errObj["code"] != "client_outdated" {
		t.Errorf("error object = %#v", errObj)
	}
	if errObj["minimum_version"] != "2.0.0" {
		t.Errorf("expected extras merged into the error object, got %#v", errObj)
	}
}

func TestJSON_WritesStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, 201, map[string]string{"key": "value"})

	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	if body["key"] != "value" {
		t.Errorf("body = %#v", body)
	}
}
