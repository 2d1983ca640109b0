// File: internal/records/sheets/store_test.go
package sheets

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/formpilot/internal/config"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/googleapi"
)

type fakeAPI struct {
	mu        sync.Mutex
	title     string
	values    [][]interface{}
	updates   map[string]string
	updateErr []error
	calls     int
}

func (f *fakeAPI) FirstSheetTitle(context.Context, string) (string, error) { return f.title, nil }

func (f *fakeAPI) Get(context.Context, string, string) ([][]interface{}, error) {
	return f.values, nil
}

func (f *fakeAPI) Update(_ context.Context, _ string, rng, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.updateErr) > 0 {
		err := f.updateErr[0]
		f.updateErr = f.updateErr[1:]
		if err != nil {
			return err
		}
	}
	if f.updates == nil {
		f.updates = map[string]string{}
	}
	f.updates[rng] = value
	return nil
}

func testStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	s := newStore(api, "sheet-id", config.SourceConfig{WritesPerSecond: 1000, WriteBurst: 10, WriteMaxElapsed: 2 * time.Second}, zaptest.NewLogger(t))
	s.initialWait = time.Millisecond
	return s
}

func TestSpreadsheetID(t *testing.T) {
	id, err := SpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_9", id)

	id, err = SpreadsheetID("1AbC-d_9")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_9", id)

	_, err = SpreadsheetID("https://example.com/not-a-sheet")
	assert.Error(t, err)
}

func TestA1(t *testing.T) {
	assert.Equal(t, "A2", A1(2, 0))
	assert.Equal(t, "H10", A1(10, 7))
	assert.Equal(t, "Z3", A1(3, 25))
	assert.Equal(t, "AA3", A1(3, 26))
	assert.Equal(t, "AZ4", A1(4, 51))
	assert.Equal(t, "BA4", A1(4, 52))
}

func TestReadAll(t *testing.T) {
	api := &fakeAPI{
		title: "Form Responses 1",
		values: [][]interface{}{
			{"Email", "", "Status:"},
			{"a@x.com", "x", "OK"},
			{"b@x.com"},
		},
	}
	tbl, err := testStore(t, api).ReadAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Email", "Unknown_Col_1", "Status:"}, tbl.Headers)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "OK", tbl.Cell(0, 2))
	assert.Equal(t, "", tbl.Cell(1, 2))
}

func TestWriteCellOffsetsHeader(t *testing.T) {
	api := &fakeAPI{title: "Sheet1"}
	s := testStore(t, api)

	require.NoError(t, s.WriteCell(context.Background(), 0, 7, "OK"))
	require.NoError(t, s.WriteCell(context.Background(), 3, 0, "DUP"))

	assert.Equal(t, "OK", api.updates["'Sheet1'!H2"])
	assert.Equal(t, "DUP", api.updates["'Sheet1'!A5"])
}

func TestWriteCellRetriesTransientErrors(t *testing.T) {
	api := &fakeAPI{
		title:     "Sheet1",
		updateErr: []error{&googleapi.Error{Code: http.StatusTooManyRequests}, nil},
	}
	require.NoError(t, testStore(t, api).WriteCell(context.Background(), 0, 0, "OK"))
	assert.Equal(t, 2, api.calls)
}

func TestWriteCellStopsOnPermanentError(t *testing.T) {
	api := &fakeAPI{
		title:     "Sheet1",
		updateErr: []error{&googleapi.Error{Code: http.StatusForbidden}},
	}
	err := testStore(t, api).WriteCell(context.Background(), 0, 0, "OK")
	require.Error(t, err)
	var gerr *googleapi.Error
	assert.True(t, errors.As(err, &gerr))
	assert.Equal(t, 1, api.calls)
}

func TestWriteCellRejectsNegativeIndex(t *testing.T) {
	assert.Error(t, testStore(t, &fakeAPI{title: "Sheet1"}).WriteCell(context.Background(), -1, 0, "OK"))
}
