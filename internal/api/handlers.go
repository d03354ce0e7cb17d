package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/smokycigga/e-2-pi-3/internal/apperrors"
	"github.com/smokycigga/e-2-pi-3/internal/evaluation"
	"github.com/smokycigga/e-2-pi-3/internal/service"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

type uploadResponse struct {
	Message            string `json:"message"`
	QuestionsExtracted int    `json:"questions_extracted"`
	ImagesExtracted    int    `json:"images_extracted"`
	AssociationsFound  int    `json:"associations_found"`
	PDFName            string `json:"pdf_name"`
}

type retrieveRequest struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
	Count   int    `json:"count"`
}

type retrievedImage struct {
	ID      string       `json:"id"`
	Caption string       `json:"caption"`
	Page    int          `json:"page"`
	BBox    storage.Rect `json:"bbox"`
}

type retrievedQuestion struct {
	storage.QuestionCandidate
	Image *retrievedImage `json:"image,omitempty"`
}

type retrieveResponse struct {
	Questions []retrievedQuestion `json:"questions"`
	Subject   storage.Subject     `json:"subject"`
	Count     int                 `json:"count"`
}

type evaluateRequest struct {
	Questions   []evaluation.Question `json:"questions"`
	UserAnswers []string              `json:"userAnswers"`
}

type subjectsResponse struct {
	Subjects []storage.Subject `json:"subjects"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.writeError(w, r, apperrors.Invalid("no file part"))
			return
		}
		s.writeError(w, r, apperrors.Invalid("reading upload: %v", err))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, r, apperrors.Invalid("no file selected"))
		return
	}

	counts, path, err := s.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:            "PDF processed successfully",
		QuestionsExtracted: counts.QuestionsExtracted,
		ImagesExtracted:    counts.ImagesExtracted,
		AssociationsFound:  counts.AssociationsFound,
		PDFName:            filepath.Base(path),
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Count == 0 {
		req.Count = service.DefaultCount
	}

	subject := storage.ParseSubject(req.Subject)
	found, err := s.svc.Retrieve(r.Context(), subject, req.Topic, req.Count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := retrieveResponse{
		Questions: make([]retrievedQuestion, 0, len(found)),
		Subject:   subject,
		Count:     len(found),
	}
	for _, q := range found {
		item := retrievedQuestion{QuestionCandidate: q}
		if img, ok := s.svc.FindAssociatedImage(q.ID); ok {
			item.Image = &retrievedImage{
				ID:      img.ID,
				Caption: img.Caption,
				Page:    img.Page,
				BBox:    img.Box.Rect(),
			}
		}
		resp.Questions = append(resp.Questions, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.svc.GenerateQuestions(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Evaluate(req.Questions, req.UserAnswers)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects := s.svc.Subjects()
	if subjects == nil {
		subjects = []storage.Subject{}
	}
	writeJSON(w, http.StatusOK, subjectsResponse{Subjects: subjects})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Invalid("invalid JSON body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError reports err as {"error": "..."} with the status it maps to.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
