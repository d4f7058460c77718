package handlers

import (
	"errors"
	"net/http"

	"doc-verify-pipeline/database"
	"doc-verify-pipeline/models"
	"doc-verify-pipeline/service"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers represents the HTTP handlers
type Handlers struct {
	svc *service.Service
	db  *database.Database
}

// NewHandlers creates new HTTP handlers
func NewHandlers(svc *service.Service, db *database.Database) *Handlers {
	return &Handlers{svc: svc, db: db}
}

// VerifyRequest is the payload for POST /verify.
type VerifyRequest struct {
	DocumentDataURI string `json:"document_data_uri" binding:"required"`
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "doc-verify-pipeline",
	})
}

// Verify runs the verification pipeline on an uploaded document image.
func (h *Handlers) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "document_data_uri is required",
		})
		return
	}

	report, err := h.svc.Verify(c.Request.Context(), req.DocumentDataURI)
	if err != nil {
		h.writeVerifyError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// writeVerifyError maps pipeline error categories to HTTP statuses. Internal
// detail stays in the logs; the client gets a stable category message.
func (h *Handlers) writeVerifyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid document payload: expected a base64 image data URI",
		})
	case errors.Is(err, service.ErrAnalysisUnavailable):
		log.Errorf("Verification failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Analysis engine is unavailable",
		})
	case errors.Is(err, service.ErrAnalysisFailed):
		log.Errorf("Verification failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Analysis engine failed to process the document",
		})
	default:
		log.Errorf("Verification failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to verify document",
		})
	}
}

// GetVerification returns a previously completed verification report.
func (h *Handlers) GetVerification(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Verification history is not enabled",
		})
		return
	}

	report, err := h.db.GetVerification(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Errorf("Failed to fetch verification: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch verification",
		})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Verification not found",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// CreateMasterRequest is the payload for POST /masters.
type CreateMasterRequest struct {
	StudentName    string `json:"student_name" binding:"required"`
	UniversityName string `json:"university_name" binding:"required"`
	DegreeName     string `json:"degree_name"`
	DateOfIssue    string `json:"date_of_issue"`
	ImageURI       string `json:"image_uri"`
}

// CreateMaster registers an institution-issued master record for later
// matching. Intended for the administrative issue flow and seeding.
func (h *Handlers) CreateMaster(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Master registry is not enabled",
		})
		return
	}

	var req CreateMasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "student_name and university_name are required",
		})
		return
	}

	master := &models.MasterDocument{
		ID:             uuid.NewString(),
		StudentName:    req.StudentName,
		UniversityName: req.UniversityName,
		DegreeName:     req.DegreeName,
		DateOfIssue:    req.DateOfIssue,
		ImageURI:       req.ImageURI,
	}
	if err := h.db.InsertMasterDocument(c.Request.Context(), master); err != nil {
		log.Errorf("Failed to insert master document: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to register master document",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": master.ID})
}

// GetStats returns aggregate verification statistics.
func (h *Handlers) GetStats(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, &database.VerificationStats{
			ByVerdict: map[string]int{},
		})
		return
	}

	stats, err := h.db.GetStats(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to fetch stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get verification stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
