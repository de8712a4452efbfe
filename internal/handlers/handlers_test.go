package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/services"
)

const basketCSV = "Items,Store\n\"milk,bread\",north\n\"milk,bread\",north\nmilk,south\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAnalyzer() *services.Analyzer {
	cfg := config.Default()
	return services.NewAnalyzer(cfg.Mining, cfg.Upload, testLogger())
}

// uploadRequest builds a multipart POST carrying content as the named file.
func uploadRequest(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadField, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, target, &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

// sseEvents splits an event stream body into its event types.
func sseEvents(body string) []string {
	var events []string
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 1024*1024), 4*1024*1024)
	for sc.Scan() {
		if ev, ok := strings.CutPrefix(sc.Text(), "event:"); ok {
			events = append(events, strings.TrimSpace(ev))
		}
	}
	return events
}

func TestSSEHandlers_HandleAnalyze(t *testing.T) {
	h := NewSSEHandlers(newTestAnalyzer(), config.Default().Upload, testLogger())

	w := httptest.NewRecorder()
	h.HandleAnalyze(w, uploadRequest(t, "/sse/analyze", "basket.csv", basketCSV))

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
	body := w.Body.String()

	events := sseEvents(body)
	if len(events) != 2 {
		t.Fatalf("events = %v, want a patch-elements and a patch-signals event", events)
	}
	if events[0] != "datastar-patch-elements" || events[1] != "datastar-patch-signals" {
		t.Errorf("events = %v", events)
	}
	for _, want := range []string{`id="report"`, "Association Rules", "barChart", "scatterChart"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q", want)
		}
	}
	if strings.Contains(body, "Error during preprocessing or analysis") {
		t.Error("successful run should not carry a notice")
	}
}

func TestSSEHandlers_HandleAnalyze_BadCell(t *testing.T) {
	h := NewSSEHandlers(newTestAnalyzer(), config.Default().Upload, testLogger())

	w := httptest.NewRecorder()
	h.HandleAnalyze(w, uploadRequest(t, "/sse/analyze", "basket.csv", "Items\n\"milk,bread\"\n,x\n"))

	body := w.Body.String()
	if !strings.Contains(body, "Error during preprocessing or analysis: row 2: transaction cell is empty") {
		t.Errorf("notice missing from stream:\n%s", body)
	}
	if !strings.Contains(body, "Missing Values") {
		t.Error("partial report should still be patched")
	}
}

func TestSSEHandlers_HandleAnalyze_NoFile(t *testing.T) {
	h := NewSSEHandlers(newTestAnalyzer(), config.Default().Upload, testLogger())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/sse/analyze", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	h.HandleAnalyze(w, r)

	if !strings.Contains(w.Body.String(), `no file in form field`) {
		t.Errorf("expected upload notice, got:\n%s", w.Body.String())
	}
}

func TestAPIHandlers_HandleAnalyze(t *testing.T) {
	h := NewAPIHandlers(newTestAnalyzer(), config.Default().Upload, testLogger())

	w := httptest.NewRecorder()
	h.HandleAnalyze(w, uploadRequest(t, "/api/analyze", "basket.csv", basketCSV))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			RunID    string `json:"run_id"`
			Itemsets []struct {
				Support float64  `json:"support"`
				Items   []string `json:"itemsets"`
			} `json:"frequent_itemsets"`
			Rules []struct {
				Lift       float64  `json:"lift"`
				Conviction *float64 `json:"conviction"`
			} `json:"rules"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Success || resp.Data.RunID == "" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if len(resp.Data.Itemsets) != 3 {
		t.Errorf("itemsets = %d, want 3", len(resp.Data.Itemsets))
	}
	if len(resp.Data.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(resp.Data.Rules))
	}
	// bread -> milk has confidence 1, so its conviction is infinite.
	if resp.Data.Rules[0].Conviction != nil {
		t.Errorf("infinite conviction should encode as null, got %v", *resp.Data.Rules[0].Conviction)
	}
}

func TestAPIHandlers_HandleAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name: "bad cell",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/analyze", "basket.csv", "Items\n,x\n")
			},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "ANALYSIS_ERROR",
		},
		{
			name: "unsupported format",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/analyze", "basket.pdf", "x")
			},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "ANALYSIS_ERROR",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{}"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "BAD_REQUEST",
		},
	}

	h := NewAPIHandlers(newTestAnalyzer(), config.Default().Upload, testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleAnalyze(w, tt.req(t))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var resp struct {
				Success bool `json:"success"`
				Error   struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.Success || resp.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantErr)
			}
			if tt.wantErr == "ANALYSIS_ERROR" && !strings.HasPrefix(resp.Error.Message, "Error during preprocessing or analysis: ") {
				t.Errorf("message = %q", resp.Error.Message)
			}
		})
	}
}

func TestAPIHandlers_HandleAnalyze_TooLarge(t *testing.T) {
	upload := config.Default().Upload
	upload.MaxBytes = 64
	h := NewAPIHandlers(newTestAnalyzer(), upload, testLogger())

	w := httptest.NewRecorder()
	h.HandleAnalyze(w, uploadRequest(t, "/api/analyze", "basket.csv", strings.Repeat("milk,bread\n", 50)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	h := NewAPIHandlers(newTestAnalyzer(), config.Default().Upload, testLogger())

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data["status"] != "healthy" || resp.Data["version"] != config.Version {
		t.Errorf("health = %v", resp.Data)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	analyzer := newTestAnalyzer()
	h := NewAPIHandlers(analyzer, config.Default().Upload, testLogger())

	h.HandleAnalyze(httptest.NewRecorder(), uploadRequest(t, "/api/analyze", "basket.csv", basketCSV))
	h.HandleAnalyze(httptest.NewRecorder(), uploadRequest(t, "/api/analyze", "basket.csv", "Items\n,x\n"))

	w := httptest.NewRecorder()
	h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var resp struct {
		Data struct {
			Runs     int64 `json:"runs"`
			Failures int64 `json:"failures"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Runs != 2 || resp.Data.Failures != 1 {
		t.Errorf("stats = %+v, want 2 runs and 1 failure", resp.Data)
	}
}

func TestPageHandlers(t *testing.T) {
	h := NewPageHandlers(newTestAnalyzer(), config.Default().Upload, testLogger())

	t.Run("dashboard", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleDashboard(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
			t.Errorf("content-type = %q", ct)
		}
		if !strings.Contains(w.Body.String(), services.Title) {
			t.Error("dashboard should carry the title")
		}
	})

	t.Run("analyze", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleAnalyze(w, uploadRequest(t, "/analyze", "basket.csv", basketCSV))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Conclusion") {
			t.Error("full page should include the conclusion")
		}
	})

	t.Run("analyze failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleAnalyze(w, uploadRequest(t, "/analyze", "basket.csv", "Items\n,x\n"))
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Error during preprocessing or analysis") {
			t.Error("failure page should show the notice")
		}
	})
}
