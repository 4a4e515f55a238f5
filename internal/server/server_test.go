package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecotrail/emissiondesk/internal/config"
	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/internal/importexport"
	referencedomain "github.com/ecotrail/emissiondesk/internal/reference/domain"
	"github.com/ecotrail/emissiondesk/internal/workflow"
)

type fakeEmissionService struct {
	records   []emissiondomain.Response
	createErr error
	updateErr error
	deleteErr error
	imported  int
}

func (f *fakeEmissionService) List(ctx context.Context, productID string) ([]emissiondomain.Response, error) {
	return f.records, nil
}

func (f *fakeEmissionService) Create(ctx context.Context, req emissiondomain.CreateRequest) (*emissiondomain.Response, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &emissiondomain.Response{ID: "500", Reference: req.Reference}, nil
}

func (f *fakeEmissionService) Update(ctx context.Context, req emissiondomain.UpdateRequest) (*emissiondomain.Response, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &emissiondomain.Response{ID: req.ID, Reference: req.Reference}, nil
}

func (f *fakeEmissionService) Delete(ctx context.Context, id string) error {
	return f.deleteErr
}

func (f *fakeEmissionService) ImportRows(ctx context.Context, productID string, rows []emissiondomain.ImportRow) (int, error) {
	f.imported += len(rows)
	return len(rows), nil
}

type fakeReferenceRepo struct{}

func (fakeReferenceRepo) ListEmissionReferences(ctx context.Context) ([]referencedomain.EmissionReference, error) {
	return []referencedomain.EmissionReference{{ID: 1, Name: "road"}, {ID: 2, Name: "rail"}}, nil
}

func (fakeReferenceRepo) ListLifecycleStageChoices(ctx context.Context, productID int64) ([]referencedomain.LifecycleStageChoice, error) {
	return []referencedomain.LifecycleStageChoice{{ID: 10, ProductID: productID, Value: "A4", DisplayName: "Transport"}}, nil
}

func (fakeReferenceRepo) ListBomLineItems(ctx context.Context, productID int64) ([]referencedomain.BomLineItem, error) {
	return nil, nil
}

func newTestServer(t *testing.T, emissionSvc *fakeEmissionService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	importSvc := importexport.New(importexport.Params{Log: log, Emission: emissionSvc})
	refRepo := fakeReferenceRepo{}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:      router,
		cfg:         config.Config{DefaultCompanyID: 42, WorkflowSessionTTL: 1800},
		log:         log,
		emissionSvc: emissionSvc,
		refRepo:     refRepo,
		importSvc:   importSvc,
		workflows: workflow.NewFactory(workflow.FactoryParams{
			Log:      log,
			Store:    emissionSvc,
			Importer: importSvc,
			RefRepo:  refRepo,
		}),
		sessions: newSessionRegistry(1800),
	}
	srv.registerAPIRoutes()
	return srv
}

func doJSON(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func uploadRequest(t *testing.T, path, filename string, blob []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(blob)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListEmissionRecords(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{
		records: []emissiondomain.Response{{ID: "101", Reference: "road"}},
	})

	resp := doJSON(srv, http.MethodGet, "/api/products/321/transport-emissions", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data []emissiondomain.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "101", body.Data[0].ID)
}

func TestCreateEmissionRecordMapsValidationError(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{createErr: emissiondomain.ErrInvalidDistance})

	resp := doJSON(srv, http.MethodPost, "/api/products/321/transport-emissions",
		`{"distance":"oops","weight":"3","reference":"road"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_distance", payload.Errors[0].Code)
	assert.Equal(t, "distance", payload.Errors[0].Field)
}

func TestUpdateEmissionRecordMapsNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{updateErr: emissiondomain.ErrNotFound})

	resp := doJSON(srv, http.MethodPatch, "/api/products/321/transport-emissions/999",
		`{"distance":"1","weight":"2","reference":"road"}`)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestCreateEmissionRecordRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})

	resp := doJSON(srv, http.MethodPost, "/api/products/321/transport-emissions", `{"distance":`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", decodeError(t, resp).Type)
}

func TestCompanyContextRejectsMalformedHeader(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/products/321/transport-emissions", nil)
	req.Header.Set(headerCompanyID, "not-a-company")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_company", payload.Errors[0].Code)
}

func TestCompanyContextRequiresCompany(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})
	srv.cfg.DefaultCompanyID = 0

	resp := doJSON(srv, http.MethodGet, "/api/products/321/transport-emissions", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Type)
}

func TestImportEmptyTemplateBlocked(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})

	req := uploadRequest(t, "/api/products/321/transport-emissions/import",
		"upload.csv", []byte("distance,weight,reference\n"))
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "import_blocked", decodeError(t, resp).Type)
}

func TestImportRejectsMissingFile(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})

	resp := doJSON(srv, http.MethodPost, "/api/products/321/transport-emissions/import", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "file", payload.Errors[0].Field)
}

func openWorkflowSession(t *testing.T, srv *Server) string {
	t.Helper()

	resp := doJSON(srv, http.MethodPost, "/api/products/321/workflow", "")
	require.Equal(t, http.StatusCreated, resp.Code)

	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func TestWorkflowSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{
		records: []emissiondomain.Response{{ID: "101", Reference: "road"}},
	})

	sessionID := openWorkflowSession(t, srv)

	resp := doJSON(srv, http.MethodGet, "/api/workflow/"+sessionID, "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		State   workflow.Snapshot `json:"state"`
		Options workflow.Options  `json:"options"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.State.Records, 1)
	assert.Len(t, body.Options.References, 2)

	resp = doJSON(srv, http.MethodDelete, "/api/workflow/"+sessionID, "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = doJSON(srv, http.MethodGet, "/api/workflow/"+sessionID, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestWorkflowIntentOpensForm(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})
	sessionID := openWorkflowSession(t, srv)

	resp := doJSON(srv, http.MethodPost, "/api/workflow/"+sessionID+"/intent", `{"intent":"open_create"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		State workflow.Snapshot `json:"state"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.State.FormOpen)
}

func TestWorkflowIntentUnknownIntent(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})
	sessionID := openWorkflowSession(t, srv)

	resp := doJSON(srv, http.MethodPost, "/api/workflow/"+sessionID+"/intent", `{"intent":"explode"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "intent", payload.Errors[0].Field)
}

func TestWorkflowImportRaisesInSessionNotice(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})
	sessionID := openWorkflowSession(t, srv)

	req := uploadRequest(t, "/api/workflow/"+sessionID+"/import",
		"upload.csv", []byte("distance,weight,reference\n"))
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	// The blocked notice lives in the session state, not the HTTP status.
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		State workflow.Snapshot `json:"state"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.State.ImportBlocked)
}

func TestWorkflowSessionScopedToCompany(t *testing.T) {
	srv := newTestServer(t, &fakeEmissionService{})
	sessionID := openWorkflowSession(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/workflow/"+sessionID, nil)
	req.Header.Set(headerCompanyID, "7")
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSessionRegistryEvictsIdleSessions(t *testing.T) {
	reg := newSessionRegistry(1)
	reg.put("stale", &workflowSession{
		companyID: 42,
		lastSeen:  time.Now().Add(-2 * time.Second),
	})

	_, ok := reg.get("stale", 42)
	assert.False(t, ok)
}

func TestSessionRegistryRefreshesOnAccess(t *testing.T) {
	reg := newSessionRegistry(3600)
	reg.put("live", &workflowSession{
		companyID: 42,
		lastSeen:  time.Now(),
	})

	sess, ok := reg.get("live", 42)
	require.True(t, ok)
	assert.NotNil(t, sess)

	_, ok = reg.get("live", 7)
	assert.False(t, ok)
}
