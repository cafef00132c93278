package redcap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/labstack/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "0123456789ABCDEF0123456789ABCDEF"

// fakeREDCap serves the record export/import API from memory.
type fakeREDCap struct {
	mu       sync.Mutex
	records  []map[string]string
	imported []map[string]interface{}
	failures int // Number of 503 responses to send before succeeding
	calls    int
	forms    []url.Values
}

func (f *fakeREDCap) handle(c echo.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	form, err := c.FormParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	f.calls++
	f.forms = append(f.forms, form)

	if f.failures > 0 {
		f.failures--
		return c.String(http.StatusServiceUnavailable, "maintenance")
	}
	if form.Get("token") != testToken {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "You do not have permissions to use the API"})
	}
	if form.Get("content") != "record" || form.Get("format") != "json" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported request"})
	}

	switch form.Get("action") {
	case "export":
		return c.JSON(http.StatusOK, f.records)
	case "import":
		var recs []map[string]interface{}
		if err := json.Unmarshal([]byte(form.Get("data")), &recs); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "The data being imported is not formatted correctly"})
		}
		f.imported = append(f.imported, recs...)
		return c.JSON(http.StatusOK, echo.Map{"count": len(recs)})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action"})
}

func newTestServer(t *testing.T, fake *fakeREDCap) *Client {
	t.Helper()

	e := echo.New()
	e.HideBanner = true
	e.POST("/api/", fake.handle)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	orig := newBackOff
	newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	t.Cleanup(func() { newBackOff = orig })

	c, err := NewClient(Options{URL: srv.URL + "/api/", Token: testToken, Timeout: 5 * time.Second, MaxRetries: 2})
	require.NoError(t, err)
	return c
}

func TestExportRecords(t *testing.T) {
	fake := &fakeREDCap{records: []map[string]string{
		{"idno": "0001--1", "redcap_event_name": "baseline_arm_1", "sex": "1", "age": "71"},
		{"idno": "0002--1", "redcap_event_name": "baseline_arm_1", "sex": "2", "age": "68"},
	}}
	c := newTestServer(t, fake)

	recs, err := c.ExportRecords(context.Background(), []string{"idno", "sex", "age"}, []string{"baseline_arm_1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "0001--1", recs[0]["idno"])
	assert.Equal(t, "68", recs[1]["age"])

	require.Len(t, fake.forms, 1)
	form := fake.forms[0]
	assert.Equal(t, "export", form.Get("action"))
	assert.Equal(t, "flat", form.Get("type"))
	assert.Equal(t, "idno", form.Get("fields[0]"))
	assert.Equal(t, "age", form.Get("fields[2]"))
	assert.Equal(t, "baseline_arm_1", form.Get("events[0]"))
}

func TestImportRecords(t *testing.T) {
	fake := &fakeREDCap{}
	c := newTestServer(t, fake)

	n, err := c.ImportRecords(context.Background(), []Record{
		{"idno": "0001--1", "aqp4_allele1": "1", "aqp4_dosage1": 0.01},
		{"idno": "0002--1", "aqp4_allele1": "3", "aqp4_dosage1": 1.98},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, fake.imported, 2)
	assert.Equal(t, "3", fake.imported[1]["aqp4_allele1"])
	assert.Equal(t, 1.98, fake.imported[1]["aqp4_dosage1"])
	assert.Equal(t, "normal", fake.forms[0].Get("overwriteBehavior"))
}

func TestPost_RetriesUnavailable(t *testing.T) {
	fake := &fakeREDCap{failures: 2}
	c := newTestServer(t, fake)

	n, err := c.ImportRecords(context.Background(), []Record{{"idno": "0001--1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, fake.calls)
}

func TestPost_GivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeREDCap{failures: 10}
	c := newTestServer(t, fake)

	_, err := c.ExportRecords(context.Background(), []string{"idno"}, nil)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "maintenance", se.Message)
	assert.Equal(t, 3, fake.calls)
}

func TestPost_ForbiddenIsNotRetried(t *testing.T) {
	fake := &fakeREDCap{}
	c := newTestServer(t, fake)
	c.token = "wrong"

	_, err := c.ExportRecords(context.Background(), []string{"idno"}, nil)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Equal(t, "You do not have permissions to use the API", se.Message)
	assert.Equal(t, 1, fake.calls)
	assert.Contains(t, err.Error(), "redcap export records failed (HTTP 403)")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{Token: testToken})
	assert.ErrorContains(t, err, "API URL is empty")

	_, err = NewClient(Options{URL: "not a url", Token: testToken})
	assert.ErrorContains(t, err, "invalid API URL")

	_, err = NewClient(Options{URL: "https://redcap.example.org/api/"})
	assert.ErrorContains(t, err, "API token is empty")
}
