package contract_test

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type openAPIDocument struct {
	Paths      map[string]map[string]json.RawMessage `json:"paths"`
	Components struct {
		Schemas map[string]json.RawMessage `json:"schemas"`
	} `json:"components"`
}

var fiberParam = regexp.MustCompile(`:([A-Za-z]+)`)

func TestOpenAPIDocumentsEveryClassroomRoute(t *testing.T) {
	doc := loadOpenAPI(t, "docs/api/classroom.json")
	app, _ := setupContractApp(t)

	checked := 0
	for _, route := range app.GetRoutes(true) {
		if !strings.HasPrefix(route.Path, "/api/v2/classroom/") {
			continue
		}
		if route.Method == http.MethodHead {
			continue
		}
		path := fiberParam.ReplaceAllString(route.Path, "{$1}")
		operations, ok := doc.Paths[path]
		require.Truef(t, ok, "path %s is not documented", path)
		_, ok = operations[strings.ToLower(route.Method)]
		require.Truef(t, ok, "%s %s is not documented", route.Method, path)
		checked++
	}
	require.Greater(t, checked, 10)
}

func TestOpenAPIDeclaresCoreSchemas(t *testing.T) {
	doc := loadOpenAPI(t, "docs/api/classroom.json")

	for _, path := range []string{"/api/v1/health", "/metrics", "/api/v2/classroom/groups", "/api/v2/classroom/comments/{id}"} {
		_, ok := doc.Paths[path]
		require.Truef(t, ok, "expected path %s", path)
	}
	for _, schema := range []string{"Envelope", "Error", "Task", "Submission", "Comment", "Notification", "DeadlineSweep"} {
		_, ok := doc.Components.Schemas[schema]
		require.Truef(t, ok, "expected schema %s", schema)
	}
}

func loadOpenAPI(t *testing.T, relative string) openAPIDocument {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "failed to resolve caller")

	fullPath := filepath.Join(filepath.Dir(filename), "..", "..", relative)
	raw, err := os.ReadFile(fullPath)
	require.NoError(t, err)

	var doc openAPIDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}
