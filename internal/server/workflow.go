package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecotrail/emissiondesk/internal/importexport"
	"github.com/ecotrail/emissiondesk/internal/sessionctx"
	"github.com/ecotrail/emissiondesk/internal/workflow"
)

type workflowSession struct {
	controller *workflow.Controller
	companyID  int64
	lastSeen   time.Time
}

// sessionRegistry tracks live console sessions by id. Idle sessions are
// evicted lazily on the next registry access after their TTL passes.
type sessionRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*workflowSession
}

func newSessionRegistry(ttlSeconds int) *sessionRegistry {
	return &sessionRegistry{
		ttl:      time.Duration(ttlSeconds) * time.Second,
		sessions: make(map[string]*workflowSession),
	}
}

func (r *sessionRegistry) put(id string, sess *workflowSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(time.Now())
	r.sessions[id] = sess
}

func (r *sessionRegistry) get(id string, companyID int64) (*workflowSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.evictLocked(now)

	sess, ok := r.sessions[id]
	if !ok || sess.companyID != companyID {
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

func (r *sessionRegistry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *sessionRegistry) evictLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for id, sess := range r.sessions {
		if now.Sub(sess.lastSeen) > r.ttl {
			delete(r.sessions, id)
		}
	}
}

// workflowIntentRequest is the single intent envelope; Intent selects the
// transition and the remaining fields carry its arguments.
type workflowIntentRequest struct {
	Intent string `json:"intent"`

	RecordID string                `json:"record_id,omitempty"`
	Field    string                `json:"field,omitempty"`
	Value    string                `json:"value,omitempty"`
	Index    int                   `json:"index,omitempty"`
	Row      *workflow.OverrideRow `json:"row,omitempty"`
	ItemID   string                `json:"item_id,omitempty"`
}

func (s *Server) CreateWorkflowSession(c *gin.Context) {
	companyID, ok := sessionctx.CompanyIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	productID := c.Param("productId")
	controller := s.workflows.NewSession(sessionctx.Session{CompanyID: companyID}, productID)
	controller.Activate(c.Request.Context())

	sessionID := uuid.NewString()
	s.sessions.put(sessionID, &workflowSession{
		controller: controller,
		companyID:  companyID.Int64(),
		lastSeen:   time.Now(),
	})

	s.log.Info("workflow session opened",
		zap.String("session_id", sessionID),
		zap.String("product_id", productID),
	)

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sessionID,
		"state":      controller.State(),
	})
}

func (s *Server) WorkflowState(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":   sess.controller.State(),
		"options": sess.controller.Options(c.Query("reference_query"), c.Query("item_query")),
	})
}

func (s *Server) WorkflowIntent(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	var req workflowIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	controller := sess.controller
	switch req.Intent {
	case "open_create":
		controller.OpenCreate()
	case "open_edit":
		controller.OpenEdit(req.RecordID)
	case "cancel_form":
		controller.CancelForm()
	case "set_field":
		controller.SetDraftField(req.Field, req.Value)
	case "add_override_row":
		controller.AddOverrideRow()
	case "remove_override_row":
		controller.RemoveOverrideRow(req.Index)
	case "set_override_row":
		if req.Row == nil {
			AbortWithError(c, newValidationError("row", "invalid_request", "override row is required"))
			return
		}
		controller.SetOverrideRow(req.Index, *req.Row)
	case "toggle_line_item":
		controller.ToggleLineItem(req.ItemID)
	case "submit_draft":
		controller.SubmitDraft()
	case "request_delete":
		controller.RequestDelete(req.RecordID)
	case "cancel_delete":
		controller.CancelDelete()
	case "confirm_delete":
		controller.ConfirmDelete()
	case "open_overrides_viewer":
		controller.OpenOverridesViewer(req.RecordID)
	case "close_overrides_viewer":
		controller.CloseOverridesViewer()
	case "open_bom_viewer":
		controller.OpenBomViewer(req.RecordID)
	case "close_bom_viewer":
		controller.CloseBomViewer()
	case "dismiss_import_blocked":
		controller.DismissImportBlocked()
	default:
		AbortWithError(c, newValidationError("intent", "invalid_request", "unknown intent"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": controller.State()})
}

func (s *Server) WorkflowImport(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		return
	}

	filename, data, err := readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Empty-template uploads raise the in-session notice instead of an error
	// response; every other failure maps as usual.
	if err := sess.controller.ImportUpload(filename, data); err != nil && !errors.Is(err, importexport.ErrEmptyTemplate) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": sess.controller.State()})
}

func (s *Server) EndWorkflowSession(c *gin.Context) {
	if _, ok := s.lookupSession(c); !ok {
		return
	}

	s.sessions.delete(c.Param("sessionId"))
	c.Status(http.StatusNoContent)
}

func (s *Server) lookupSession(c *gin.Context) (*workflowSession, bool) {
	companyID, ok := sessionctx.CompanyIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}

	sess, ok := s.sessions.get(c.Param("sessionId"), companyID.Int64())
	if !ok {
		AbortWithError(c, ErrNotFound)
		return nil, false
	}
	return sess, true
}
