// Package convert turns the filled DOCX into a PDF through CloudConvert.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/Lllllllleong/contractsigning/internal/outbound"
)

// ErrConversion is returned when CloudConvert does not produce a PDF.
var ErrConversion = errors.New("document conversion failed")

const (
	taskImport  = "import-docx"
	taskConvert = "convert-to-pdf"
	taskExport  = "export-pdf"
)

type task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Result    struct {
		Form *struct {
			URL        string            `json:"url"`
			Parameters map[string]string `json:"parameters"`
		} `json:"form,omitempty"`
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"files,omitempty"`
	} `json:"result"`
}

type job struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Tasks  []task `json:"tasks"`
}

type jobEnvelope struct {
	Data job `json:"data"`
}

func (j *job) task(name string) *task {
	for i := range j.Tasks {
		if j.Tasks[i].Name == name {
			return &j.Tasks[i]
		}
	}
	return nil
}

// CloudConvert is a minimal client for the v2 jobs API.
type CloudConvert struct {
	http        *outbound.Client
	apiKey      string
	baseURL     string
	syncBaseURL string
}

// NewCloudConvert returns a client. syncBaseURL serves the blocking job wait endpoint.
func NewCloudConvert(client *outbound.Client, apiKey, baseURL, syncBaseURL string) *CloudConvert {
	return &CloudConvert{
		http:        client,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		syncBaseURL: strings.TrimRight(syncBaseURL, "/"),
	}
}

func (c *CloudConvert) auth() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// ToPDF uploads docx, waits for the conversion and downloads the result.
func (c *CloudConvert) ToPDF(ctx context.Context, docx []byte, filename string) ([]byte, error) {
	logCtx := slog.With("converter", "cloudconvert")

	created, err := c.createJob(ctx)
	if err != nil {
		return nil, err
	}
	logCtx = logCtx.With("jobId", created.ID)

	upload := created.task(taskImport)
	if upload == nil || upload.Result.Form == nil {
		return nil, fmt.Errorf("%w: job %s has no upload form", ErrConversion, created.ID)
	}
	if err := c.upload(ctx, upload.Result.Form.URL, upload.Result.Form.Parameters, docx, filename); err != nil {
		return nil, err
	}
	logCtx.Info("Uploaded document for conversion.")

	var done jobEnvelope
	if err := c.http.DoJSON(ctx, http.MethodGet, c.syncBaseURL+"/jobs/"+created.ID, c.auth(), nil, &done); err != nil {
		return nil, fmt.Errorf("%w: waiting for job %s: %w", ErrConversion, created.ID, err)
	}
	export := done.Data.task(taskExport)
	if export == nil || export.Status != "finished" || len(export.Result.Files) == 0 {
		msg := "export task did not finish"
		if t := done.Data.task(taskConvert); t != nil && t.Message != "" {
			msg = t.Message
		}
		return nil, fmt.Errorf("%w: job %s: %s", ErrConversion, created.ID, msg)
	}

	pdf, err := c.http.Download(ctx, export.Result.Files[0].URL)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading result of job %s: %w", ErrConversion, created.ID, err)
	}
	logCtx.Info("Conversion finished.", "bytes", len(pdf))
	return pdf, nil
}

func (c *CloudConvert) createJob(ctx context.Context) (*job, error) {
	body := map[string]any{
		"tasks": map[string]any{
			taskImport:  map[string]any{"operation": "import/upload"},
			taskConvert: map[string]any{"operation": "convert", "input": taskImport, "output_format": "pdf"},
			taskExport:  map[string]any{"operation": "export/url", "input": taskConvert},
		},
	}
	var res jobEnvelope
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/jobs", c.auth(), body, &res); err != nil {
		return nil, fmt.Errorf("%w: creating job: %w", ErrConversion, err)
	}
	return &res.Data, nil
}

// upload posts the file to the pre-signed form. Form parameters must precede
// the file part.
func (c *CloudConvert) upload(ctx context.Context, url string, params map[string]string, data []byte, filename string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, params[k]); err != nil {
			return fmt.Errorf("%w: %v", ErrConversion, err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: uploading document: %w", ErrConversion, err)
	}
	_ = res.Body.Close()
	return nil
}
