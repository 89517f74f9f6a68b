package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentrelay/artifact"
	"github.com/hupe1980/agentrelay/document"
	"github.com/hupe1980/agentrelay/stream"
)

// multipartOverhead is the slack allowed on top of the upload limit for the
// multipart envelope.
const multipartOverhead = 64 << 10

// FileInfo describes an accepted upload.
type FileInfo struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Size       int64          `json:"size"`
	Type       document.Type  `json:"type"`
	Metadata   map[string]any `json:"metadata"`
}

// UploadResponse is the body of POST /upload.
type UploadResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	FileInfo *FileInfo `json:"file_info,omitempty"`
	Content  string    `json:"content,omitempty"`
}

// FileAnalysisRequest asks a question about a document given either inline
// or by the id returned from an upload.
type FileAnalysisRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	FileContent string `json:"file_content"`
	DocumentID  string `json:"document_id"`
}

// Upload accepts one multipart file, extracts its text and stores it.
// POST /upload
func (s *Server) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, UploadResponse{Message: "缺少上传文件"})
	}
	if fh.Size > s.maxUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, UploadResponse{
			Message: fmt.Sprintf("文件大小超过%dMB限制", s.maxUpload>>20),
		})
	}
	if !document.Supported(fh.Filename) {
		return c.JSON(http.StatusUnsupportedMediaType, UploadResponse{
			Message: fmt.Sprintf("不支持的文件类型: %s", fh.Filename),
		})
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, UploadResponse{Message: fmt.Sprintf("文件上传失败: %v", err)})
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, UploadResponse{Message: fmt.Sprintf("文件上传失败: %v", err)})
	}

	res := s.extractor.Extract(c.Request().Context(), fh.Filename, data)
	if !res.Success {
		return c.JSON(http.StatusUnprocessableEntity, UploadResponse{Message: "文件解析失败: " + res.Error})
	}

	doc, err := s.documents.Save(c.FormValue("session_id"), artifact.Document{
		Name:     fh.Filename,
		Type:     document.TypeOf(fh.Filename),
		Size:     int64(len(data)),
		Content:  res.Content,
		Metadata: res.Metadata,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, UploadResponse{Message: fmt.Sprintf("文件保存失败: %v", err)})
	}

	s.logger.Info("upload.stored", "document_id", doc.ID, "filename", doc.Name, "size", doc.Size)

	return c.JSON(http.StatusOK, UploadResponse{
		Success: true,
		Message: "文件上传并解析成功",
		FileInfo: &FileInfo{
			DocumentID: doc.ID,
			Filename:   doc.Name,
			Size:       doc.Size,
			Type:       doc.Type,
			Metadata:   doc.Metadata,
		},
		Content: res.Content,
	})
}

// FileAnalysisStream answers a question about a document. The reply is
// streamed as SSE unless NDJSON is requested.
// POST /chat/file-analysis/stream
func (s *Server) FileAnalysisStream(c echo.Context) error {
	var req FileAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return errorJSON(c, http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}

	content := req.FileContent
	if req.DocumentID != "" {
		doc, err := s.lookupDocument(req.SessionID, req.DocumentID)
		if err != nil {
			return errorJSON(c, http.StatusNotFound, err.Error())
		}
		content = doc.Content
	}
	if content == "" {
		return errorJSON(c, http.StatusBadRequest, "file_content or document_id is required")
	}

	events := s.relay.Analyze(c.Request().Context(), req.SessionID, req.Message, content)
	return s.writeStream(c, negotiate(c, stream.ContentTypeSSE), events)
}

// lookupDocument finds id in the session scope, then among anonymous
// uploads.
func (s *Server) lookupDocument(sessionID, id string) (artifact.Document, error) {
	doc, err := s.documents.Get(sessionID, id)
	if errors.Is(err, artifact.ErrNotFound) {
		doc, err = s.documents.Get("", id)
	}
	return doc, err
}

// ListDocuments lists the uploads of a session without their content.
// GET /chat/session/:session_id/documents
func (s *Server) ListDocuments(c echo.Context) error {
	docs, err := s.documents.List(c.Param("session_id"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"documents": docs})
}

// Formats lists the accepted upload extensions.
// GET /documents/formats
func (s *Server) Formats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"formats":   document.Formats(),
		"max_bytes": s.maxUpload,
	})
}
