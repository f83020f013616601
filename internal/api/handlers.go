package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dharsanguruparan/billsync/internal/ingest"
	"github.com/dharsanguruparan/billsync/internal/model"
	"github.com/dharsanguruparan/billsync/internal/queue"
	"github.com/dharsanguruparan/billsync/internal/repository"
	"github.com/dharsanguruparan/billsync/internal/s3storage"
)

type scanRequest struct {
	Query       string `json:"query"`
	MaxMessages int    `json:"maxMessages"`
}

type statusRequest struct {
	Status model.BillStatus `json:"status" binding:"required"`
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid scan request")
			return
		}
	}
	info, err := queue.EnqueueScan(c.Request.Context(), s.queue, queue.ScanPayload{
		UserID:      c.Param("user"),
		Query:       req.Query,
		MaxMessages: req.MaxMessages,
	}, 0)
	if err != nil {
		slog.Error("Could not enqueue scan.", "userId", c.Param("user"), "error", err)
		fail(c, http.StatusInternalServerError, "failed to queue scan")
		return
	}
	success(c, http.StatusAccepted, gin.H{"taskId": info.ID})
}

func (s *Server) handleStatements(c *gin.Context) {
	userID := c.Param("user")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 4*s.cfg.MaxFileSize+1024)
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, "expecting multipart form")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		fail(c, http.StatusBadRequest, "no files in field \"file\"")
		return
	}

	refs := make([]queue.StatementRef, 0, len(files))
	for _, fh := range files {
		ref, status, err := s.storeStatement(c, userID, fh)
		if err != nil {
			fail(c, status, err.Error())
			return
		}
		refs = append(refs, ref)
	}

	info, err := queue.EnqueueStatements(c.Request.Context(), s.queue, queue.StatementsPayload{UserID: userID, Statements: refs})
	if err != nil {
		slog.Error("Could not enqueue statements.", "userId", userID, "error", err)
		fail(c, http.StatusInternalServerError, "failed to queue statements")
		return
	}
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	success(c, http.StatusAccepted, gin.H{"taskId": info.ID, "statements": ids})
}

// storeStatement validates one upload and writes it to object storage. Only PDF
// and plain-text statements are accepted.
func (s *Server) storeStatement(c *gin.Context, userID string, fh *multipart.FileHeader) (queue.StatementRef, int, error) {
	if fh.Size == 0 {
		return queue.StatementRef{}, http.StatusBadRequest, fmt.Errorf("%s is empty", fh.Filename)
	}
	if fh.Size > s.cfg.MaxFileSize {
		return queue.StatementRef{}, http.StatusRequestEntityTooLarge, fmt.Errorf("%s exceeds limit (%d bytes)", fh.Filename, s.cfg.MaxFileSize)
	}
	f, err := fh.Open()
	if err != nil {
		return queue.StatementRef{}, http.StatusBadRequest, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(f, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return queue.StatementRef{}, http.StatusBadRequest, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	contentType, _, _ := mime.ParseMediaType(http.DetectContentType(sniff[:n]))
	if contentType != "application/pdf" && contentType != "text/plain" {
		return queue.StatementRef{}, http.StatusUnsupportedMediaType, fmt.Errorf("%s: only PDF or text statements supported", fh.Filename)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return queue.StatementRef{}, http.StatusInternalServerError, fmt.Errorf("rewind %s: %w", fh.Filename, err)
	}

	ref := queue.StatementRef{
		ID:          uuid.NewString(),
		FileName:    fh.Filename,
		ContentType: contentType,
	}
	ref.ObjectKey = s3storage.StatementKey(userID, ref.ID, fh.Filename)
	if err := s.store.PutStatement(c.Request.Context(), ref.ObjectKey, f, fh.Size, contentType); err != nil {
		slog.Error("Upload to storage failed.", "userId", userID, "fileName", fh.Filename, "error", err)
		return queue.StatementRef{}, http.StatusInternalServerError, errors.New("failed to store file")
	}
	return ref, http.StatusAccepted, nil
}

func (s *Server) handleBills(c *gin.Context) {
	bills, err := s.svc.Bills(c.Request.Context(), c.Param("user"))
	if err != nil {
		slog.Error("Could not list bills.", "userId", c.Param("user"), "error", err)
		fail(c, http.StatusInternalServerError, "failed to list bills")
		return
	}
	if bills == nil {
		bills = []model.StoredBill{}
	}
	success(c, http.StatusOK, bills)
}

func (s *Server) handleBillStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "status is required")
		return
	}
	err := s.svc.SetBillStatus(c.Request.Context(), c.Param("user"), c.Param("id"), req.Status)
	switch {
	case errors.Is(err, ingest.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		fail(c, http.StatusNotFound, "bill not found")
	case err != nil:
		slog.Error("Could not update bill.", "userId", c.Param("user"), "billId", c.Param("id"), "error", err)
		fail(c, http.StatusInternalServerError, "failed to update bill")
	default:
		success(c, http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
	}
}

func (s *Server) handleMatches(c *gin.Context) {
	matches, err := s.svc.Matches(c.Request.Context(), c.Param("user"))
	if err != nil {
		slog.Error("Could not compute matches.", "userId", c.Param("user"), "error", err)
		fail(c, http.StatusInternalServerError, "failed to compute matches")
		return
	}
	if matches == nil {
		matches = []model.Match{}
	}
	success(c, http.StatusOK, matches)
}
