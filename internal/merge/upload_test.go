package merge

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func multipartUpload(t *testing.T, mode, filename, contents string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("mode", mode); err != nil {
		t.Fatal(err)
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(contents)); err != nil {
		t.Fatal(err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadHandlerValidate(t *testing.T) {
	st := fixtureStore()
	h := &UploadHandler{Runner: &Runner{Store: st}, MaxBytes: 1 << 20}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "validate", "instructions.csv", editCSV))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Mode    string   `json:"mode"`
		Results []string `json:"results"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "validate" {
		t.Errorf("mode = %q", resp.Mode)
	}
	if len(resp.Results) == 0 || !strings.HasPrefix(resp.Results[0], "Validating this process: ") {
		t.Errorf("results = %q", resp.Results)
	}
	if st.saveAssetCalls != 0 {
		t.Error("validate upload committed changes")
	}
}

func TestUploadHandlerRejectsBadMode(t *testing.T) {
	h := &UploadHandler{Runner: &Runner{Store: fixtureStore()}, MaxBytes: 1 << 20}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "commit", "instructions.csv", editCSV))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestUploadHandlerRejectsGet(t *testing.T) {
	h := &UploadHandler{Runner: &Runner{Store: fixtureStore()}, MaxBytes: 1 << 20}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/assets/upload/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestUploadHandlerRejectsOversizeFile(t *testing.T) {
	h := &UploadHandler{Runner: &Runner{Store: fixtureStore()}, MaxBytes: 64}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "validate", "instructions.csv",
		"id,asset_id,ids_to_merge\n"+strings.Repeat("101,1,101\n", 50)))
	if rr.Code != http.StatusRequestEntityTooLarge && rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestUploadHandlerFileFatal(t *testing.T) {
	h := &UploadHandler{Runner: &Runner{Store: fixtureStore()}, MaxBytes: 1 << 20}
	rr := httptest.NewRecorder()
	// asset_id 404 does not exist, which is fatal to the whole file.
	h.ServeHTTP(rr, multipartUpload(t, "update", "instructions.csv",
		"id,asset_id,ids_to_merge\n101,404,101\n"))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Error, "Asset with id = 404") {
		t.Errorf("error = %q", resp.Error)
	}
}
