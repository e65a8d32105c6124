package httpx

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestProblemUsesProblemJSONMediaType(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, 409, "Conflict", "stock changed")

	if got := rec.Header().Get("Content-Type"); got != "application/problem+json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Code != 409 {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var pd ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &pd); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if pd.Type != problemType || pd.Title != "Conflict" || pd.Status != 409 {
		t.Fatalf("unexpected problem detail %+v", pd)
	}
}
