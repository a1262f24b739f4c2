package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/outbound"
)

// fakeCloudConvert serves the four endpoints a conversion touches.
func fakeCloudConvert(t *testing.T, exportStatus string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("POST /v2/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body struct {
			Tasks map[string]map[string]string `json:"tasks"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Tasks[taskConvert]["output_format"] != "pdf" {
			t.Errorf("unexpected job body: %v %v", body, err)
		}
		fmt.Fprintf(w, `{"data":{"id":"job-1","tasks":[{"name":%q,"status":"waiting","result":{"form":{"url":%q,"parameters":{"key":"abc","policy":"p"}}}}]}}`,
			taskImport, srv.URL+"/upload")
	})
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("key") != "abc" || r.FormValue("policy") != "p" {
			t.Errorf("form params = %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "contrato.docx" || string(data) != "DOCX" {
			t.Errorf("uploaded %s %q", hdr.Filename, data)
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /sync/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"id":"job-1","status":"finished","tasks":[
			{"name":%q,"status":"error","message":"bad input"},
			{"name":%q,"status":%q,"result":{"files":[{"filename":"contrato.pdf","url":%q}]}}]}}`,
			taskConvert, taskExport, exportStatus, srv.URL+"/files/contrato.pdf")
	})
	mux.HandleFunc("GET /files/contrato.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-converted"))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestToPDF(t *testing.T) {
	srv := fakeCloudConvert(t, "finished")
	c := NewCloudConvert(outbound.New(5*time.Second), "key", srv.URL+"/v2", srv.URL+"/sync")

	pdf, err := c.ToPDF(context.Background(), []byte("DOCX"), "contrato.docx")
	if err != nil {
		t.Fatalf("ToPDF() error = %v", err)
	}
	if string(pdf) != "%PDF-converted" {
		t.Errorf("ToPDF() = %q", pdf)
	}
}

func TestToPDF_ExportFailed(t *testing.T) {
	srv := fakeCloudConvert(t, "error")
	c := NewCloudConvert(outbound.New(5*time.Second), "key", srv.URL+"/v2", srv.URL+"/sync")

	_, err := c.ToPDF(context.Background(), []byte("DOCX"), "contrato.docx")
	if !errors.Is(err, ErrConversion) {
		t.Fatalf("ToPDF() error = %v, want ErrConversion", err)
	}
}

func TestToPDF_Unauthorized(t *testing.T) {
	srv := fakeCloudConvert(t, "finished")
	c := NewCloudConvert(outbound.New(5*time.Second), "wrong", srv.URL+"/v2", srv.URL+"/sync")

	_, err := c.ToPDF(context.Background(), []byte("DOCX"), "contrato.docx")
	var se *outbound.StatusError
	if !errors.Is(err, ErrConversion) || !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Errorf("ToPDF() error = %v, want ErrConversion wrapping a 401", err)
	}
}
