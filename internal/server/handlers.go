package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path"
	"sort"
	"time"

	"github.com/ftpshare/ftpshare/internal/remote"
	"github.com/ftpshare/ftpshare/internal/token"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
)

// APIResponse is the envelope for all JSON responses
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CreateShareRequest is the body for POST /api/shares
type CreateShareRequest struct {
	ServerID        string `json:"serverId"`
	Path            string `json:"path"`
	Filename        string `json:"filename"`
	DurationSeconds int64  `json:"durationSeconds"`
}

// CreateScheduledShareRequest is the body for POST /api/shares/scheduled
type CreateScheduledShareRequest struct {
	ServerID    string   `json:"serverId"`
	Path        string   `json:"path"`
	Filename    string   `json:"filename"`
	Days        []string `json:"days"`
	WindowStart string   `json:"windowStart"`
	WindowEnd   string   `json:"windowEnd"`
	ExpiryDate  string   `json:"expiryDate"` // YYYY-MM-DD
}

// ShareResponse is returned when a share is created
type ShareResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	ExpiresIn string    `json:"expiresIn"`
}

// ShareListItem is one entry in the share listing
type ShareListItem struct {
	ID             string    `json:"id"`
	ServerID       string    `json:"serverId"`
	ServerName     string    `json:"serverName"`
	Path           string    `json:"path"`
	Filename       string    `json:"filename"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	PolicyKind     string    `json:"policyKind"`
	Days           []string  `json:"days,omitempty"`
	WindowStart    string    `json:"windowStart,omitempty"`
	WindowEnd      string    `json:"windowEnd,omitempty"`
	ExpiresIn      string    `json:"expiresIn"`
	ExpiresPercent int       `json:"expiresPercent"`
	Accessible     bool      `json:"accessible"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"system":    s.systemTracker.Snapshot(),
	})
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	type serverInfo struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
	}

	servers := s.directory.Servers()
	infos := make([]serverInfo, 0, len(servers))
	for _, srv := range servers {
		infos = append(infos, serverInfo{
			ID:       srv.ID,
			Name:     srv.Name,
			Host:     srv.Host,
			Port:     srv.Port,
			Username: srv.Username,
		})
	}

	s.writeJSON(w, map[string]interface{}{"servers": infos})
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	serverID := mux.Vars(r)["serverID"]
	dirPath := r.URL.Query().Get("path")
	if dirPath == "" {
		dirPath = "/"
	}

	entries, err := s.fileSource.List(r.Context(), serverID, dirPath)
	if err != nil {
		if errors.Is(err, remote.ErrServerNotFound) {
			s.writeError(w, "server not found", http.StatusNotFound)
			return
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"server": serverID,
			"path":   dirPath,
		}).Error("Failed to list remote directory")
		s.writeError(w, "failed to list directory", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"path":  dirPath,
		"files": entries,
	})
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// The nanosecond conversion below wraps past this bound.
	if req.DurationSeconds > math.MaxInt64/int64(time.Second) {
		s.writeError(w, "duration too large", http.StatusBadRequest)
		return
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	if req.DurationSeconds == 0 {
		duration = s.config.Share.DefaultDuration
	}

	tok, err := s.tokenManager.IssueSimple(r.Context(), req.ServerID, req.Path, filenameOrBase(req.Filename, req.Path), duration)
	if err != nil {
		s.writeShareError(w, err)
		return
	}

	s.metrics.ShareIssued(string(token.PolicySimple))
	s.writeShareCreated(w, tok)
}

func (s *Server) handleCreateScheduledShare(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduledShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	weekdays := make([]time.Weekday, 0, len(req.Days))
	for _, name := range req.Days {
		day, err := token.ParseWeekday(name)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		weekdays = append(weekdays, day)
	}

	windowStart, err := token.ParseClockTime(req.WindowStart)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	windowEnd, err := token.ParseClockTime(req.WindowEnd)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	expiryDate, err := time.ParseInLocation("2006-01-02", req.ExpiryDate, time.Local)
	if err != nil {
		s.writeError(w, fmt.Sprintf("invalid expiry date %q", req.ExpiryDate), http.StatusBadRequest)
		return
	}

	tok, err := s.tokenManager.IssueScheduled(r.Context(), req.ServerID, req.Path, filenameOrBase(req.Filename, req.Path), weekdays, windowStart, windowEnd, expiryDate)
	if err != nil {
		s.writeShareError(w, err)
		return
	}

	s.metrics.ShareIssued(string(token.PolicyScheduled))
	s.writeShareCreated(w, tok)
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokenManager.List(r.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to list shares")
		s.writeError(w, "failed to list shares", http.StatusInternalServerError)
		return
	}

	// Presentation order: newest first
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})

	now := s.tokenManager.Now()
	items := make([]ShareListItem, 0, len(tokens))
	for _, tok := range tokens {
		serverName, err := s.directory.NameOf(tok.ServerID)
		if err != nil {
			serverName = tok.ServerID
		}

		text, percent := token.Describe(tok.Policy.ExpiresAt, now)
		item := ShareListItem{
			ID:             tok.ID,
			ServerID:       tok.ServerID,
			ServerName:     serverName,
			Path:           tok.Path,
			Filename:       tok.Filename,
			CreatedAt:      tok.CreatedAt,
			ExpiresAt:      tok.Policy.ExpiresAt,
			PolicyKind:     string(tok.Policy.Kind),
			ExpiresIn:      text,
			ExpiresPercent: percent,
			Accessible:     token.Evaluate(tok.Policy, now) == token.DecisionAllowed,
		}
		if tok.Policy.Kind == token.PolicyScheduled {
			for _, day := range tok.Policy.Weekdays {
				item.Days = append(item.Days, day.String())
			}
			item.WindowStart = tok.Policy.WindowStart.String()
			item.WindowEnd = tok.Policy.WindowEnd.String()
		}
		items = append(items, item)
	}

	s.writeJSON(w, map[string]interface{}{"shares": items})
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.tokenManager.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, token.ErrNotFound) {
			s.writeError(w, "share not found", http.StatusNotFound)
			return
		}
		logrus.WithError(err).WithField("share", id).Error("Failed to revoke share")
		s.writeError(w, "failed to revoke share", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]string{"message": "Share revoked"})
}

func (s *Server) handleShareQR(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tok, err := s.tokenManager.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			s.writeError(w, "share not found", http.StatusNotFound)
			return
		}
		logrus.WithError(err).WithField("share", id).Error("Failed to load share")
		s.writeError(w, "failed to load share", http.StatusInternalServerError)
		return
	}

	png, err := qrcode.Encode(s.shareURL(tok.ID), qrcode.Medium, 256)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode QR code")
		s.writeError(w, "failed to encode QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tok, decision, err := s.tokenManager.CheckAccess(r.Context(), id)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			s.writeError(w, "invalid share link", http.StatusNotFound)
			return
		}
		logrus.WithError(err).WithField("share", id).Error("Failed to check share access")
		s.writeError(w, "failed to check share access", http.StatusInternalServerError)
		return
	}

	s.metrics.AccessChecked(decision.String())

	switch decision {
	case token.DecisionExpired:
		s.writeError(w, "share link expired", http.StatusGone)
		return
	case token.DecisionOutsideWindow:
		s.writeError(w, "share not available right now", http.StatusForbidden)
		return
	}

	stream, size, err := s.fileSource.Open(r.Context(), tok.ServerID, tok.Path)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"share":  tok.ID,
			"server": tok.ServerID,
			"path":   tok.Path,
		}).Error("Failed to open remote file")
		if errors.Is(err, remote.ErrFileNotFound) {
			s.writeError(w, "shared file no longer exists", http.StatusNotFound)
			return
		}
		s.writeError(w, "failed to fetch file", http.StatusBadGateway)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tok.Filename))
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}

	if _, err := io.Copy(w, stream); err != nil {
		logrus.WithError(err).WithField("share", tok.ID).Warn("Download interrupted")
		return
	}

	s.metrics.DownloadCompleted()
}

func (s *Server) writeShareCreated(w http.ResponseWriter, tok *token.Token) {
	text, _ := token.Describe(tok.Policy.ExpiresAt, s.tokenManager.Now())
	s.writeJSON(w, ShareResponse{
		ID:        tok.ID,
		URL:       s.shareURL(tok.ID),
		CreatedAt: tok.CreatedAt,
		ExpiresAt: tok.Policy.ExpiresAt,
		ExpiresIn: text,
	})
}

func (s *Server) writeShareError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrInvalidRequest):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, token.ErrGenerationExhausted):
		logrus.WithError(err).Error("Token generation exhausted")
		s.writeError(w, "failed to generate share token", http.StatusInternalServerError)
	default:
		logrus.WithError(err).Error("Failed to create share")
		s.writeError(w, "failed to create share", http.StatusInternalServerError)
	}
}

func (s *Server) shareURL(id string) string {
	return fmt.Sprintf("%s/api/download/%s", s.config.PublicURL, id)
}

func filenameOrBase(filename, filePath string) string {
	if filename != "" {
		return filename
	}
	return path.Base(filePath)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message})
	logrus.WithField("error", message).WithField("status", statusCode).Warn("API error")
}
