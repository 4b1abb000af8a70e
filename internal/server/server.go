// Package server exposes the emission engine over HTTP for the
// surrounding application: issuance, events, and read access for the
// downstream document renderer.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rezonia/nfe-engine/internal/engine"
	"github.com/rezonia/nfe-engine/internal/model"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server is the HTTP API server
type Server struct {
	config *Config
	router *gin.Engine
	engine *engine.Engine
	log    *zap.Logger
}

// NewServer creates the API server around an engine
func NewServer(config *Config, eng *engine.Engine, log *zap.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config: config,
		router: router,
		engine: eng,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/documents/issue", s.handleIssue)
		v1.POST("/documents/:id/cancel", s.handleCancel)
		v1.POST("/documents/:id/correct", s.handleCorrect)
		v1.GET("/documents/:id", s.handleGet)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info("listening", zap.String("address", s.config.Address))
	return srv.ListenAndServe()
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIssue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: model.ErrCodeValidation, Message: err.Error()})
		return
	}

	doc, err := req.ToDocument()
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.engine.Issue(c.Request.Context(), doc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, IssueResponse{
		ID:        doc.ID.String(),
		AccessKey: result.AccessKey,
		Protocol:  result.Protocol,
		Status:    string(result.Status),
		SignedXML: string(result.SignedXML),
	})
}

func (s *Server) handleCancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: model.ErrCodeValidation, Message: err.Error()})
		return
	}

	result, err := s.engine.Cancel(c.Request.Context(), id, req.Justification)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, EventResponse{Protocol: result.Protocol})
}

func (s *Server) handleCorrect(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req CorrectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: model.ErrCodeValidation, Message: err.Error()})
		return
	}

	result, err := s.engine.Correct(c.Request.Context(), id, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, EventResponse{Protocol: result.Protocol, Sequence: result.Sequence})
}

func (s *Server) handleGet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	doc, err := s.engine.GetDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, DocumentResponse{
		ID:        doc.ID.String(),
		AccessKey: doc.AccessKey,
		Status:    string(doc.Status),
		Protocol:  doc.Protocol,
		SignedXML: string(doc.SignedXML),
		LastError: doc.LastError,
	})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: model.ErrCodeValidation, Message: "malformed document id"})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps the error taxonomy onto HTTP statuses, keeping
// the taxonomy code visible to the caller
func respondError(c *gin.Context, err error) {
	var (
		validation *model.ValidationError
		cert       *model.CertificateError
		network    *model.NetworkError
		rejection  *model.ProtocolRejection
		window     *model.TimeWindowError
		conflict   *model.SequenceConflictError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Code: model.ErrCodeValidation, Message: err.Error()})
	case errors.As(err, &cert):
		c.JSON(http.StatusBadGateway, ErrorResponse{Code: model.ErrCodeCertificate, Message: err.Error()})
	case errors.As(err, &network):
		c.JSON(http.StatusBadGateway, ErrorResponse{Code: model.ErrCodeNetwork, Message: err.Error()})
	case errors.As(err, &rejection):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Code: model.ErrCodeRejection, Message: rejection.Reason, StatusCode: rejection.Code,
		})
	case errors.As(err, &window):
		c.JSON(http.StatusConflict, ErrorResponse{Code: model.ErrCodeTimeWindow, Message: err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ErrorResponse{Code: model.ErrCodeSequenceConflict, Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
