package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"product_sheet/internal/config"
	"product_sheet/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   []byte
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	values   func(path string, attempt int) (int, string)
	attempts int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	query := map[string]string{}
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: query, Body: body})

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v4/spreadsheets/sid":
		fmt.Fprint(w, `{"sheets":[{"properties":{"title":"other","sheetId":3}},{"properties":{"title":"page1","sheetId":7}}]}`)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sid/values/"):
		f.attempts++
		status, payload := http.StatusOK, `{"values":[]}`
		if f.values != nil {
			status, payload = f.values(r.URL.Path, f.attempts)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, payload)
	default:
		fmt.Fprint(w, `{}`)
	}
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func fastRetry() config.ResilienceConfig {
	return config.ResilienceConfig{
		SheetRead: retry.Config{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
			Timeout:    time.Second,
		},
	}
}

func newTestWorksheet(t *testing.T, api *fakeAPI) *Worksheet {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client, err := newClient(ctx, fastRetry(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	ws, err := client.Worksheet(ctx, "sid", "page1")
	require.NoError(t, err)
	return ws
}

func TestWorksheetResolvesSheetID(t *testing.T) {
	ws := newTestWorksheet(t, &fakeAPI{})
	assert.Equal(t, int64(7), ws.sheetID)
	assert.Equal(t, "page1", ws.Title())
}

func TestWorksheetNotFound(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{})
	t.Cleanup(srv.Close)

	client, err := newClient(context.Background(), fastRetry(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	_, err = client.Worksheet(context.Background(), "sid", "missing")
	require.ErrorContains(t, err, `worksheet "missing" not found`)
}

func TestValuesReadsFormulasAsText(t *testing.T) {
	api := &fakeAPI{values: func(path string, attempt int) (int, string) {
		return http.StatusOK, `{"values":[["Name","Price","Quantity"],["Pen",50,10],["","=SUM(B2:B2)"],["Flag",12.5,true]]}`
	}}
	ws := newTestWorksheet(t, api)

	rows, err := ws.Values(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "Price", "Quantity"},
		{"Pen", "50", "10"},
		{"", "=SUM(B2:B2)"},
		{"Flag", "12.5", "TRUE"},
	}, rows)

	req := api.last()
	assert.Equal(t, "/v4/spreadsheets/sid/values/'page1'!A:ZZ", req.Path)
	assert.Equal(t, "FORMULA", req.Query["valueRenderOption"])
}

func TestColumnValuesUsesColumnMajor(t *testing.T) {
	api := &fakeAPI{values: func(path string, attempt int) (int, string) {
		return http.StatusOK, `{"values":[["Price",50,900]]}`
	}}
	ws := newTestWorksheet(t, api)

	col, err := ws.ColumnValues(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Price", "50", "900"}, col)

	req := api.last()
	assert.Equal(t, "/v4/spreadsheets/sid/values/'page1'!B:B", req.Path)
	assert.Equal(t, "COLUMNS", req.Query["majorDimension"])
}

func TestRowValuesEmptyRow(t *testing.T) {
	ws := newTestWorksheet(t, &fakeAPI{})

	row, err := ws.RowValues(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, row)
}

func TestReadsRetryServerErrors(t *testing.T) {
	api := &fakeAPI{values: func(path string, attempt int) (int, string) {
		if attempt == 1 {
			return http.StatusServiceUnavailable, `{"error":{"code":503,"message":"backend unavailable"}}`
		}
		return http.StatusOK, `{"values":[["Name","Price","Quantity"]]}`
	}}
	ws := newTestWorksheet(t, api)

	row, err := ws.RowValues(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Price", "Quantity"}, row)
	assert.Equal(t, 2, api.attempts)
}

func TestReadsDoNotRetryClientErrors(t *testing.T) {
	api := &fakeAPI{values: func(path string, attempt int) (int, string) {
		return http.StatusForbidden, `{"error":{"code":403,"message":"caller does not have permission"}}`
	}}
	ws := newTestWorksheet(t, api)

	_, err := ws.Values(context.Background())
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
	assert.Equal(t, 1, api.attempts)
}

func TestAppendRowsUsesInputMode(t *testing.T) {
	api := &fakeAPI{}
	ws := newTestWorksheet(t, api)

	require.NoError(t, ws.AppendRows(context.Background(), [][]interface{}{{"Pen", 50, 10}}, UserEntered))

	req := api.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v4/spreadsheets/sid/values/'page1'!A1:append", req.Path)
	assert.Equal(t, "USER_ENTERED", req.Query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", req.Query["insertDataOption"])

	var vr sheets.ValueRange
	require.NoError(t, json.Unmarshal(req.Body, &vr))
	assert.Equal(t, [][]interface{}{{"Pen", float64(50), float64(10)}}, vr.Values)
}

func TestUpdateRangeWritesCell(t *testing.T) {
	api := &fakeAPI{}
	ws := newTestWorksheet(t, api)

	require.NoError(t, ws.UpdateRange(context.Background(), Cell(3, 2), [][]interface{}{{"=SUM(B2:B2)"}}, UserEntered))

	req := api.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/v4/spreadsheets/sid/values/'page1'!B3", req.Path)
	assert.Equal(t, "USER_ENTERED", req.Query["valueInputOption"])
}

func TestDeleteRowSendsDimensionRange(t *testing.T) {
	api := &fakeAPI{}
	ws := newTestWorksheet(t, api)

	require.NoError(t, ws.DeleteRow(context.Background(), 3))

	req := api.last()
	assert.Equal(t, "/v4/spreadsheets/sid:batchUpdate", req.Path)
	var batch sheets.BatchUpdateSpreadsheetRequest
	require.NoError(t, json.Unmarshal(req.Body, &batch))
	require.Len(t, batch.Requests, 1)
	dr := batch.Requests[0].DeleteDimension.Range
	assert.Equal(t, int64(7), dr.SheetId)
	assert.Equal(t, "ROWS", dr.Dimension)
	assert.Equal(t, int64(2), dr.StartIndex)
	assert.Equal(t, int64(3), dr.EndIndex)

	require.Error(t, ws.DeleteRow(context.Background(), 0))
}

func TestFormatBatchesRanges(t *testing.T) {
	api := &fakeAPI{}
	ws := newTestWorksheet(t, api)

	green := Color{Red: 0.3, Green: 1, Blue: 0.3}
	err := ws.Format(context.Background(),
		RangeFormat{Range: RowSpan(1, 1, 3), Format: Format{Bold: true, FontSize: 12, HorizontalAlignment: "CENTER"}},
		RangeFormat{Range: RowSpan(2, 1, 3), Format: Format{Background: &green, WrapStrategy: "WRAP"}},
		RangeFormat{Range: RowSpan(3, 1, 3)},
	)
	require.NoError(t, err)

	var batch sheets.BatchUpdateSpreadsheetRequest
	require.NoError(t, json.Unmarshal(api.last().Body, &batch))
	require.Len(t, batch.Requests, 2)

	header := batch.Requests[0].RepeatCell
	assert.Equal(t, "userEnteredFormat.textFormat.bold,userEnteredFormat.textFormat.fontSize,userEnteredFormat.horizontalAlignment", header.Fields)
	assert.Equal(t, int64(0), header.Range.StartRowIndex)
	assert.Equal(t, int64(1), header.Range.EndRowIndex)
	assert.Equal(t, int64(3), header.Range.EndColumnIndex)

	row := batch.Requests[1].RepeatCell
	assert.Equal(t, "userEnteredFormat.backgroundColor,userEnteredFormat.wrapStrategy", row.Fields)
	assert.Equal(t, int64(1), row.Range.StartRowIndex)
	assert.Equal(t, int64(2), row.Range.EndRowIndex)
	assert.Equal(t, 0.3, row.Cell.UserEnteredFormat.BackgroundColor.Red)
	assert.Equal(t, "WRAP", row.Cell.UserEnteredFormat.WrapStrategy)
}

func TestFormatWithNothingToApplySkipsRequest(t *testing.T) {
	api := &fakeAPI{}
	ws := newTestWorksheet(t, api)
	before := len(api.requests)

	require.NoError(t, ws.Format(context.Background(), RangeFormat{Range: Cell(1, 1)}))
	assert.Len(t, api.requests, before)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&googleapi.Error{Code: 429}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 502})))
	assert.False(t, IsRetryable(&googleapi.Error{Code: 400}))
	assert.False(t, IsRetryable(&googleapi.Error{Code: 404}))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(errors.New("worksheet not found")))
}

func TestCredentialsOption(t *testing.T) {
	_, err := Credentials{}.option()
	require.Error(t, err)

	_, err = Credentials{File: "credentials.json"}.option()
	require.NoError(t, err)

	_, err = Credentials{JSON: []byte(`{"type":"service_account"}`)}.option()
	require.NoError(t, err)
}
