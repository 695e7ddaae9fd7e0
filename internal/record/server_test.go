package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"receipttracker/internal/engine"
	"receipttracker/internal/pipeline"
)

// fakeEngine implements engine.Engine for the engines endpoint.
type fakeEngine struct {
	desc     engine.Descriptor
	probeErr error
}

func (f *fakeEngine) Descriptor() engine.Descriptor { return f.desc }
func (f *fakeEngine) Probe(ctx context.Context) error {
	return f.probeErr
}
func (f *fakeEngine) Recognize(ctx context.Context, png []byte, opts engine.Options) *engine.RawResult {
	return &engine.RawResult{EngineID: f.desc.ID, Success: true}
}
func (f *fakeEngine) Close() error { return nil }

// fakeEngineStatus implements EngineStatus over a fixed engine list.
type fakeEngineStatus struct {
	engines []engine.Engine
	prober  *engine.Prober
}

func (s *fakeEngineStatus) Engines() []engine.Engine { return s.engines }
func (s *fakeEngineStatus) Prober() *engine.Prober   { return s.prober }

func multipartUpload(fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		Expect(w.WriteField(k, v)).To(Succeed())
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = fw.Write(file)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(w.Close()).To(Succeed())
	return &body, w.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db        *mockDB
		storage   *mockStorage
		processor *mockProcessor
		status    *fakeEngineStatus
		server    *Server
		recorder  *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		processor = &mockProcessor{parsed: parsedCoffeeShop()}
		status = &fakeEngineStatus{
			engines: []engine.Engine{
				&fakeEngine{desc: engine.Descriptor{ID: "deepseek", Name: "DeepSeek-OCR", Transport: engine.TransportRemote, Structured: true}},
				&fakeEngine{desc: engine.Descriptor{ID: "tesseract", Name: "Tesseract", Transport: engine.TransportLocal}, probeErr: errors.New("missing traineddata")},
			},
			prober: engine.NewProber(time.Minute),
		}
		service := NewServiceWithDeps(db, processor, storage,
			&fixedIDGenerator{id: "test-id"}, &fixedTimeSource{now: time.Now()})
		server = NewServer(service, status, BasicAuth{})
		recorder = httptest.NewRecorder()
	})

	Describe("GET /health", func() {
		It("returns ok", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusOK))

			var body map[string]string
			Expect(json.Unmarshal(recorder.Body.Bytes(), &body)).To(Succeed())
			Expect(body["status"]).To(Equal("ok"))
		})
	})

	Describe("POST /api/receipts", func() {
		It("processes an upload and returns the receipt", func() {
			body, contentType := multipartUpload(nil, "receipt.jpg", []byte("imagedata"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusCreated))
			var receipt Receipt
			Expect(json.Unmarshal(recorder.Body.Bytes(), &receipt)).To(Succeed())
			Expect(receipt.ID).To(Equal("test-id"))
			Expect(receipt.Merchant).To(Equal("COFFEE SHOP"))
			Expect(receipt.TotalCents).To(Equal(850))
		})

		It("passes cascade controls from the form through to the pipeline", func() {
			fields := map[string]string{
				"engine":   "easyocr",
				"fallback": "false",
				"lang":     "de",
				"prompt":   "extract everything",
			}
			body, contentType := multipartUpload(fields, "receipt.jpg", []byte("imagedata"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusCreated))
			Expect(processor.lastOpts).To(Equal(pipeline.Options{
				Engine:        "easyocr",
				AllowFallback: false,
				Language:      "de",
				Prompt:        "extract everything",
			}))
		})

		It("allows fallback by default", func() {
			body, contentType := multipartUpload(nil, "receipt.jpg", []byte("imagedata"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(processor.lastOpts.AllowFallback).To(BeTrue())
		})

		It("derives the content type from the filename extension", func() {
			body, contentType := multipartUpload(nil, "receipt.pdf", []byte("%PDF-1.4"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(processor.lastContentType).To(Equal("application/pdf"))
		})

		It("rejects a request without a file", func() {
			body, contentType := multipartUpload(map[string]string{"lang": "de"}, "", nil)
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		When("every engine fails", func() {
			BeforeEach(func() {
				processor.err = &pipeline.PipelineFailure{Attempts: []pipeline.Attempt{
					{EngineID: "deepseek", Kind: engine.FailureUnavailable},
					{EngineID: "tesseract", Kind: engine.FailureBackendError, Invoked: true},
				}}
			})

			It("responds 502 with the attempt trail", func() {
				body, contentType := multipartUpload(nil, "receipt.jpg", []byte("imagedata"))
				req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
				req.Header.Set("Content-Type", contentType)
				server.ServeHTTP(recorder, req)

				Expect(recorder.Code).To(Equal(http.StatusBadGateway))
				var resp struct {
					Error    string             `json:"error"`
					Attempts []pipeline.Attempt `json:"attempts"`
				}
				Expect(json.Unmarshal(recorder.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.Error).To(ContainSubstring("all engines failed"))
				Expect(resp.Attempts).To(HaveLen(2))
				Expect(resp.Attempts[0].EngineID).To(Equal("deepseek"))
			})
		})
	})

	Describe("GET /api/receipts", func() {
		It("lists stored receipts", func() {
			db.receipts["r1"] = &Receipt{ID: "r1", Merchant: "Shop"}
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var receipts []*Receipt
			Expect(json.Unmarshal(recorder.Body.Bytes(), &receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].ID).To(Equal("r1"))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("returns the receipt", func() {
			db.receipts["r1"] = &Receipt{ID: "r1", Merchant: "Shop"}
			req := httptest.NewRequest(http.MethodGet, "/api/receipts/r1", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var receipt Receipt
			Expect(json.Unmarshal(recorder.Body.Bytes(), &receipt)).To(Succeed())
			Expect(receipt.Merchant).To(Equal("Shop"))
		})

		It("responds 404 for an unknown id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts/nope", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/receipts/{id}/file", func() {
		It("serves the original document", func() {
			db.receipts["r1"] = &Receipt{ID: "r1", Filename: "r1_receipt.jpg", ContentType: "image/jpeg"}
			storage.files["r1_receipt.jpg"] = []byte("imagedata")

			req := httptest.NewRequest(http.MethodGet, "/api/receipts/r1/file", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(recorder.Header().Get("Content-Type")).To(Equal("image/jpeg"))
			Expect(recorder.Body.Bytes()).To(Equal([]byte("imagedata")))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		It("deletes the receipt", func() {
			db.receipts["r1"] = &Receipt{ID: "r1", Filename: "r1_receipt.jpg"}
			req := httptest.NewRequest(http.MethodDelete, "/api/receipts/r1", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})
	})

	Describe("GET /api/engines", func() {
		It("reports the cascade with availability", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/engines", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var infos []map[string]any
			Expect(json.Unmarshal(recorder.Body.Bytes(), &infos)).To(Succeed())
			Expect(infos).To(HaveLen(2))

			Expect(infos[0]["id"]).To(Equal("deepseek"))
			Expect(infos[0]["transport"]).To(Equal("remote"))
			Expect(infos[0]["structured"]).To(Equal(true))
			Expect(infos[0]["available"]).To(Equal(true))

			Expect(infos[1]["id"]).To(Equal("tesseract"))
			Expect(infos[1]["available"]).To(Equal(false))
			Expect(infos[1]["detail"]).To(Equal("missing traineddata"))
		})
	})

	When("basic auth is configured", func() {
		BeforeEach(func() {
			service := NewServiceWithDeps(db, processor, storage,
				&fixedIDGenerator{id: "test-id"}, &fixedTimeSource{now: time.Now()})
			server = NewServer(service, status, BasicAuth{Username: "admin", Password: "secret"})
		})

		It("rejects unauthenticated API requests", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
			req.SetBasicAuth("admin", "secret")
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusOK))
		})

		It("rejects wrong credentials", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
			req.SetBasicAuth("admin", "wrong")
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
		})

		It("leaves the health endpoint open", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusOK))
		})
	})
})
