package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mmdatafocus/catalog_backend/catalogimport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu      sync.Mutex
		nextID  int
		created []string
	)
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		var body struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		nextID++
		id := nextID
		created = append(created, body.Code)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": id, "code": body.Code}})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/catalog/areas", handler)
	mux.HandleFunc("/v1/catalog/concepts", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &created
}

func TestRootCmd_RemoteImportFromFile(t *testing.T) {
	srv, created := catalogServer(t)
	t.Setenv("CATALOG_API_BASE_URL", srv.URL)
	t.Setenv("CATALOG_API_KEY", "k")
	t.Setenv("CATALOG_API_RATE_LIMIT_PER_MIN", "0")

	path := filepath.Join(t.TempDir(), "catalogo.tsv")
	text := "2\tCONTROL DE CALIDAD\n2.1\tTERRACERÍAS\n2.1.1.1 (+)\t\"VISITA PARA...\"\tVISITA\t3%\t$1,231.53\n"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--business-id", "biz-1", "--remote", "--file", path})
	require.NoError(t, cmd.Execute())

	var summary catalogimport.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 3, summary.CategoriesCreated)
	assert.Equal(t, 1, summary.ConceptsCreated)
	assert.Equal(t, []string{"2", "2.1", "2.1.1", "2.1.1.1"}, *created)
}

func TestRootCmd_PartialExit(t *testing.T) {
	srv, _ := catalogServer(t)
	t.Setenv("CATALOG_API_BASE_URL", srv.URL)
	t.Setenv("CATALOG_API_KEY", "k")
	t.Setenv("CATALOG_API_RATE_LIMIT_PER_MIN", "0")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString("1\tPRELIMINARES\n1.4\t\"ALGO\"\n"))
	cmd.SetArgs([]string{"--business-id", "biz-1", "--remote"})

	err := cmd.Execute()
	assert.ErrorIs(t, err, errPartial)
}

func TestRootCmd_RequiresBusiness(t *testing.T) {
	t.Setenv("CATALOG_BUSINESS_ID", "")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString("2\tCONTROL\n"))
	cmd.SetArgs([]string{"--remote"})
	assert.Error(t, cmd.Execute())
}
