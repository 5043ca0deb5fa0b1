package piko15

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cepro/solarmonitor/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInverter serves dxs.json, answering each requested id from `values`. Ids missing from `values` are left out of
// the response.
func newInverter(t *testing.T, values map[int]any) (*httptest.Server, *int) {
	t.Helper()
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests++
		if req.URL.Path != dxsPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		response := map[string][]map[string]any{"dxsEntries": {}}
		for _, raw := range req.URL.Query()["dxsEntries"] {
			id, err := strconv.Atoi(raw)
			require.NoError(t, err)
			if v, ok := values[id]; ok {
				response["dxsEntries"] = append(response["dxsEntries"], map[string]any{"dxsId": id, "value": v})
			}
		}
		response["dxsEntries"] = append(response["dxsEntries"], map[string]any{"dxsId": 99999, "value": 1})
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestRead(t *testing.T) {
	server, requests := newInverter(t, map[int]any{
		67109120:  4321.5,
		33555202:  612.0,
		251658753: 18234,
		16780032:  3,
		67110400:  nil,
	})

	reader := New(server.URL, time.Second)
	record, err := reader.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *requests)

	assert.True(t, record.Reachable)
	assert.Equal(t, telemetry.DevicePiko15, record.Device)
	assert.Equal(t, 4321.5, *record.Fields["ac_power_total"].Value)
	assert.Equal(t, 612.0, *record.Fields["dc_voltage_string1"].Value)
	assert.Equal(t, 18234.0, *record.Fields["yield_total"].Value)

	status := record.Fields["status"]
	assert.Equal(t, telemetry.Enum, status.Kind)
	assert.Equal(t, 3.0, *status.Value)

	assert.False(t, record.Fields["grid_frequency"].Present())
	assert.NotContains(t, record.Fields, "ac_power_l1")
	assert.Len(t, record.Fields, 5)
}

func TestReadDecodeErrors(t *testing.T) {
	server, _ := newInverter(t, map[int]any{
		67109120: 1000.0,
		16780032: 2.5,
		33556736: "n/a",
	})

	record, err := New(server.URL, time.Second).Read(context.Background())
	require.Error(t, err)

	var decodeErr *telemetry.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.NotErrorIs(t, err, telemetry.ErrUnreachable)
	assert.Equal(t, 2, strings.Count(err.Error(), "decode piko_15 field"))

	assert.True(t, record.Reachable)
	assert.Equal(t, 1000.0, *record.Fields["ac_power_total"].Value)
	assert.NotContains(t, record.Fields, "status")
	assert.NotContains(t, record.Fields, "dc_power_total")
}

func TestReadUnreachable(t *testing.T) {
	server, _ := newInverter(t, nil)
	url := server.URL
	server.Close()

	record, err := New(url, time.Second).Read(context.Background())
	assert.ErrorIs(t, err, telemetry.ErrUnreachable)
	assert.False(t, record.Reachable)
}

func TestReadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	record, err := New(server.URL, time.Second).Read(context.Background())
	assert.ErrorIs(t, err, telemetry.ErrUnreachable)
	assert.False(t, record.Reachable)
}

func TestChunkIDs(t *testing.T) {
	base := "http://192.168.1.20/api/dxs.json"

	type subTest struct {
		name           string
		ids            []int
		limit          int
		expectedChunks [][]int
	}

	subTests := []subTest{
		{"Everything fits", []int{1, 22, 333}, 2000, [][]int{{1, 22, 333}}},
		// base is 32 bytes and each "?dxsEntries=N" adds 12 + len(N)
		{"Split at limit", []int{1, 2, 3}, 32 + 13*2, [][]int{{1, 2}, {3}}},
		{"Oversized id still sent", []int{123456}, 10, [][]int{{123456}}},
		{"Empty", nil, 2000, nil},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			assert.Equal(t, st.expectedChunks, chunkIDs(base, st.ids, st.limit))
		})
	}
}

func TestAllEntriesFitWithinURLLimit(t *testing.T) {
	base := "http://piko15.local" + dxsPath

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	seen := 0
	for _, chunk := range chunkIDs(base, ids, maxURLLength) {
		length := len(base)
		for _, id := range chunk {
			length += len("?dxsEntries=") + len(strconv.Itoa(id))
		}
		assert.LessOrEqual(t, length, maxURLLength)
		seen += len(chunk)
	}
	assert.Equal(t, len(entries), seen)
}

func TestIndexEntries(t *testing.T) {
	_, err := indexEntries([]entry{{1, "a", telemetry.Float}, {1, "b", telemetry.Float}})
	assert.ErrorContains(t, err, "duplicate dxs id 1")

	_, err = indexEntries([]entry{{1, "a", telemetry.Float}, {2, "a", telemetry.Float}})
	assert.ErrorContains(t, err, "duplicate field 'a'")

	assert.Len(t, entriesByID, len(entries))
}
