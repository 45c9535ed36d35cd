package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/require"

	"github.com/gradewire/gradewire/pkg/artifact"
	"github.com/gradewire/gradewire/pkg/store"
	"github.com/gradewire/gradewire/test/util"
)

// newTestServer builds a server over a real schema with in-memory artifact
// storage. The database client is nil; /health is not exercised here.
func newTestServer(t *testing.T) (*Server, *store.Store, *artifact.Repository) {
	t.Helper()

	db := util.SetupTestDatabase(t)
	st := store.New(db, nil)

	repo, err := artifact.NewRepository(artifact.NewMemoryStorage(), artifact.CompatStrict)
	require.NoError(t, err)

	return NewServer(nil, st, repo, nil), st, repo
}

func doJSON(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	out := new(T)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	return out
}

// seedAPIIdentities creates a candidate and an assignment over HTTP and
// returns their public IDs.
func seedAPIIdentities(t *testing.T, s *Server) (candidateID, assignmentID string) {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/v1/candidates", CreateCandidateRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cand := decodeBody[CandidateResponse](t, rec)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/assignments", CreateAssignmentRequest{
		Title:       "Queue design task",
		Description: "Design a durable work queue",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var asg struct {
		PublicID string `json:"assignment_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asg))

	return cand.Candidate.PublicID, asg.PublicID
}

func postMultipartFile(t *testing.T, s *Server, fields map[string]string, fileName string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/file", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeadersApplied(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/assignments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
}

func TestReadyWithoutRunners(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadyResponse](t, rec)
	require.Equal(t, "ready", ready.Status)
}
