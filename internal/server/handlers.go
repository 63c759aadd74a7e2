package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/annotie/internal/annotation"
	"github.com/roach88/annotie/internal/graph"
	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/schema"
	"github.com/roach88/annotie/internal/store"
)

// AnonymousSession is the session recorded for change-sets posted without
// a session header. Its seqs are allocated by the server.
const AnonymousSession = "anonymous"

// Error codes returned in ErrorResponse.Code. Annotation errors use the
// annotation package codes (MALFORMED_ANNOTATION and so on).
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidEnvelope   = "INVALID_ENVELOPE"
	CodeInvalidHeader     = "INVALID_HEADER"
	CodeChangeSetMismatch = "CHANGESET_MISMATCH"
	CodeInvalidRecord     = "INVALID_RECORD"
	CodeInvalidRow        = "INVALID_ROW"
	CodeNotFound          = "NOT_FOUND"
	CodeExists            = "ALREADY_EXISTS"
	CodeInternal          = "INTERNAL"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ApplyResponse acknowledges a change-set.
type ApplyResponse struct {
	ID      string `json:"id"`
	Session string `json:"session"`
	Seq     int64  `json:"seq"`
	// Applied is false when the change-set id was already logged.
	Applied bool `json:"applied"`
}

// ForkRequest names the annotation created by a fork.
type ForkRequest struct {
	ID string `json:"id" binding:"required"`
}

// Handlers serves annotations from a store.
type Handlers struct {
	store     *store.Store
	validator *schema.Validator
}

// NewHandlers creates handlers over st. Incoming records are checked with v.
func NewHandlers(st *store.Store, v *schema.Validator) *Handlers {
	return &Handlers{store: st, validator: v}
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleList handles GET /annotations.
func (h *Handlers) HandleList(c *gin.Context) {
	infos, err := h.store.ListAnnotations(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if infos == nil {
		infos = []store.AnnotationInfo{}
	}
	c.JSON(http.StatusOK, infos)
}

// HandleCreate handles PUT /annotations/:id.
//
// The body is a flat record, JSON or (with a YAML content type) YAML. It
// must pass the schema and load cleanly; the stored form carries the
// derived id counters.
func (h *Handlers) HandleCreate(c *gin.Context) {
	id := c.Param("id")
	data, err := c.GetRawData()
	if err != nil {
		h.reject(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}

	var rec record.Record
	if strings.Contains(c.ContentType(), "yaml") {
		rec, err = h.validator.DecodeYAML(data)
	} else {
		rec, err = h.validator.Decode(data)
	}
	if err != nil {
		h.reject(c, http.StatusUnprocessableEntity, CodeInvalidRecord, err)
		return
	}

	loaded, err := annotation.Initialize(rec)
	if err != nil {
		h.fail(c, err)
		return
	}
	snapshot := loaded.Snapshot()
	if err := h.store.CreateAnnotation(c.Request.Context(), id, snapshot); err != nil {
		h.fail(c, err)
		return
	}

	slog.Info("annotation created", "annotation", id, "entities", len(snapshot.Entities), "ties", len(snapshot.Ties))
	c.JSON(http.StatusCreated, snapshot)
}

// HandleGet handles GET /annotations/:id.
func (h *Handlers) HandleGet(c *gin.Context) {
	rec, err := h.store.LoadAnnotation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleApply handles POST and PATCH /annotations/:id.
//
// A change-set stamped with both X-Annotie-Session and X-Annotie-Seq is
// deduplicated by its content-addressed id, so a retried send is applied
// once. Without a seq the server stamps the change-set with the next seq of
// its session (anonymous when the session header is missing too) and always
// applies it: a repeated unstamped payload is a new edit, not a retry.
//
// Response:
//
//	200 OK: ApplyResponse
//	400 Bad Request: bad envelope, header, or change-set id
//	404 Not Found: unknown annotation
//	422 Unprocessable Entity: an entry would store an invalid row
func (h *Handlers) HandleApply(c *gin.Context) {
	id := c.Param("id")

	var env record.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		h.reject(c, http.StatusBadRequest, CodeInvalidEnvelope, err)
		return
	}
	cs, err := env.ChangeSet()
	if err != nil {
		h.reject(c, http.StatusBadRequest, CodeInvalidEnvelope, err)
		return
	}

	session := c.GetHeader(record.HeaderSession)
	rawSeq := c.GetHeader(record.HeaderSeq)
	claimed := c.GetHeader(record.HeaderChangeSet)
	switch {
	case rawSeq != "" && session == "":
		h.reject(c, http.StatusBadRequest, CodeInvalidHeader, errors.New(record.HeaderSeq+" requires "+record.HeaderSession))
		return
	case claimed != "" && rawSeq == "":
		h.reject(c, http.StatusBadRequest, CodeInvalidHeader, errors.New(record.HeaderChangeSet+" requires "+record.HeaderSeq))
		return
	}
	if session == "" {
		session = AnonymousSession
	}

	var (
		changesetID string
		seq         int64
		applied     bool
	)
	if rawSeq != "" {
		if seq, err = strconv.ParseInt(rawSeq, 10, 64); err != nil || seq < 0 {
			h.reject(c, http.StatusBadRequest, CodeInvalidHeader, errors.New(record.HeaderSeq+" must be a non-negative integer"))
			return
		}
		if changesetID, err = record.ChangeSetID(id, session, seq, cs); err != nil {
			h.reject(c, http.StatusBadRequest, CodeInvalidEnvelope, err)
			return
		}
		if claimed != "" && claimed != changesetID {
			h.reject(c, http.StatusBadRequest, CodeChangeSetMismatch,
				errors.New("change-set id does not match its content"))
			return
		}
		applied, err = h.store.ApplyChangeSet(c.Request.Context(), id, changesetID, session, seq, cs)
	} else {
		changesetID, seq, err = h.store.AppendChangeSet(c.Request.Context(), id, session, cs)
		applied = err == nil
	}
	if err != nil {
		changeSetsApplied.WithLabelValues("rejected").Inc()
		h.fail(c, err)
		return
	}
	if applied {
		changeSetsApplied.WithLabelValues("applied").Inc()
	} else {
		changeSetsApplied.WithLabelValues("duplicate").Inc()
	}

	slog.Debug("change-set received",
		"annotation", id,
		"session", session,
		"seq", seq,
		"changeset", changesetID,
		"applied", applied,
	)
	c.JSON(http.StatusOK, ApplyResponse{ID: changesetID, Session: session, Seq: seq, Applied: applied})
}

// HandleChangeSets handles GET /annotations/:id/changesets.
func (h *Handlers) HandleChangeSets(c *gin.Context) {
	log, err := h.store.ListChangeSets(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if log == nil {
		log = []store.LoggedChangeSet{}
	}
	c.JSON(http.StatusOK, log)
}

// HandleGraph handles GET /annotations/:id/graph?key=source,target&merge=sum.
func (h *Handlers) HandleGraph(c *gin.Context) {
	keys, err := graph.ParseKeyFields(c.Query("key"))
	if err != nil {
		h.reject(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	merge, err := graph.ParseMergeMethod(c.Query("merge"))
	if err != nil {
		h.reject(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}

	rec, err := h.store.LoadAnnotation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	// Concurrent sessions can leave the merged rows inconsistent; that
	// surfaces here as MALFORMED_ANNOTATION.
	loaded, err := annotation.Initialize(rec)
	if err != nil {
		h.fail(c, err)
		return
	}
	g, err := graph.Project(loaded, graph.Options{KeyFields: keys, Merge: merge})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// HandleLineage handles GET /annotations/:id/lineage.
func (h *Handlers) HandleLineage(c *gin.Context) {
	lineage, err := h.store.Lineage(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lineage": lineage})
}

// HandleFork handles POST /annotations/:id/fork.
func (h *Handlers) HandleFork(c *gin.Context) {
	parent := c.Param("id")
	var req ForkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	if err := h.store.Fork(c.Request.Context(), parent, req.ID); err != nil {
		h.fail(c, err)
		return
	}
	slog.Info("annotation forked", "parent", parent, "annotation", req.ID)
	c.JSON(http.StatusCreated, gin.H{"id": req.ID, "parent_id": parent})
}

// fail maps a store or annotation error to a response.
func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrAnnotationNotFound):
		h.reject(c, http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, store.ErrAnnotationExists):
		h.reject(c, http.StatusConflict, CodeExists, err)
	case errors.Is(err, store.ErrInvalidRow):
		h.reject(c, http.StatusUnprocessableEntity, CodeInvalidRow, err)
	case annotation.CodeOf(err) != "":
		h.reject(c, http.StatusUnprocessableEntity, string(annotation.CodeOf(err)), err)
	default:
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
	}
}

func (h *Handlers) reject(c *gin.Context, status int, code string, err error) {
	slog.Warn("request rejected", "path", c.Request.URL.Path, "code", code, "error", err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
