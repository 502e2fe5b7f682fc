package rrdp

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// APIServer handles HTTP requests for the status page and the kill switch.
type APIServer struct {
	service *Service
}

// NewAPIServer creates a new API server.
func NewAPIServer(service *Service) *APIServer {
	return &APIServer{service: service}
}

// RegisterHandlers registers the HTTP handlers.
func (s *APIServer) RegisterHandlers() {
	http.HandleFunc("/", s.viewCycles)
	http.HandleFunc("/config", s.viewConfig)
	http.HandleFunc("/kill", s.handleKillSwitch)
	http.HandleFunc("/restart", s.handleRestart)
}

const tpl = `
<!DOCTYPE html>
<html>
<head>
    <title>RRDP Mirror</title>
    <style>
        body { font-family: sans-serif; margin: 20px; }
        table { border-collapse: collapse; width: 100%; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; vertical-align: top; }
        th { background-color: #f2f2f2; }
        .success { background-color: #d4edda; }
        .not_modified { background-color: #e9ecef; }
        .structure_error { background-color: #f8d7da; }
        .aborted { background-color: #fff3cd; }
        .failure { background-color: #f8d7da; }
        .config { margin-bottom: 20px; padding: 10px; background-color: #e9ecef; border-radius: 5px; }
        .scheduler-status { margin-bottom: 20px; padding: 10px; border-radius: 5px; border: 1px solid; }
        .scheduler-active { background-color: #d4edda; border-color: #c3e6cb; color: #155724; }
        .scheduler-stopped { background-color: #f8d7da; border-color: #f5c6cb; color: #721c24; }
        td.detail { font-size: 0.8em; word-break: break-all; max-width: 500px; }
    </style>
</head>
<body>
    <h1>RRDP Mirror</h1>
    <div class="config">
        <strong>Current Configuration:</strong><br>
        Notification URL: {{.Config.NotificationURL}}<br>
        Fetch Interval: {{.Config.Interval}}<br>
        Request Timeout: {{.Config.Timeout}}<br>
        Current Time: {{.Config.CurrentTime}}
    </div>

    <div class="scheduler-status {{if .SchedulerActive}}scheduler-active{{else}}scheduler-stopped{{end}}">
        <strong>Scheduler Status:</strong> {{if .SchedulerActive}}Active (Fetching Snapshots){{else}}STOPPED (Kill Switch Activated){{end}}
    </div>

    <h2>Recent Fetch Cycles</h2>
    <table>
        <tr>
            <th>ID</th>
            <th>Outcome</th>
            <th>Serial</th>
            <th>Objects</th>
            <th>Collisions</th>
            <th>Started At</th>
            <th>Duration</th>
            <th>Detail</th>
        </tr>
        {{range .Cycles}}
        <tr class="{{.Outcome}}">
            <td>{{.ID}}</td>
            <td>{{.Outcome}}</td>
            <td>{{.Serial}}</td>
            <td>{{.ObjectCount}}</td>
            <td>{{.CollisionCount}}</td>
            <td>{{.StartedAt.Format "2006-01-02 15:04:05"}}</td>
            <td>{{.FinishedAt.Sub .StartedAt}}</td>
            <td class="detail">{{.Detail}}</td>
        </tr>
        {{else}}
        <tr>
            <td colspan="8" style="text-align: center; font-style: italic;">No fetch cycles recorded yet</td>
        </tr>
        {{end}}
    </table>
</body>
</html>
`

func (s *APIServer) viewCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.service.GetRecentFetchCycles(100)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get fetch cycles: %v", err), http.StatusInternalServerError)
		return
	}

	schedulerActive, err := s.service.db.GetSchedulerStatus()
	if err != nil {
		slog.Error("failed to get scheduler status", "err", err)
		schedulerActive = true
	}

	notificationURL, err := s.service.GetConfigValue("notification_url")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get config: %v", err), http.StatusInternalServerError)
		return
	}
	interval, err := s.service.GetConfigValue("fetch_interval")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get config: %v", err), http.StatusInternalServerError)
		return
	}
	timeout, err := s.service.GetConfigValue("request_timeout")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get config: %v", err), http.StatusInternalServerError)
		return
	}

	data := struct {
		Config struct {
			NotificationURL string
			Interval        string
			Timeout         string
			CurrentTime     string
		}
		SchedulerActive bool
		Cycles          []FetchCycle
	}{
		SchedulerActive: schedulerActive,
		Cycles:          cycles,
	}
	data.Config.NotificationURL = notificationURL
	data.Config.Interval = interval
	data.Config.Timeout = timeout
	data.Config.CurrentTime = time.Now().Format("2006-01-02 15:04:05")

	t, err := template.New("webpage").Parse(tpl)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to parse template: %v", err), http.StatusInternalServerError)
		return
	}

	if err := t.Execute(w, data); err != nil {
		http.Error(w, fmt.Sprintf("failed to execute template: %v", err), http.StatusInternalServerError)
	}
}

func (s *APIServer) viewConfig(w http.ResponseWriter, r *http.Request) {
	config := make(map[string]string)
	for _, key := range []string{"notification_url", "fetch_interval", "request_timeout"} {
		value, err := s.service.GetConfigValue(key)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to get config: %v", err), http.StatusInternalServerError)
			return
		}
		config[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(config); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode config: %v", err), http.StatusInternalServerError)
	}
}

// checkCredential compares a presented API key against the stored bcrypt hash.
func (s *APIServer) checkCredential(dbKey, apiKey string) (bool, error) {
	storedHash, err := s.service.db.GetCredential(dbKey)
	if err != nil {
		return false, err
	}
	if storedHash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(apiKey)) == nil, nil
}

// handleKillSwitch stops the scheduler after three authorized attempts within
// a minute. The threshold guards against a single leaked request stopping the
// mirror.
func (s *APIServer) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	s.handleSchedulerToggle(w, r, "kill", "kill_switch_api_key", false)
}

// handleRestart re-enables the scheduler with the same three-attempt rule.
func (s *APIServer) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.handleSchedulerToggle(w, r, "restart", "kill_restart_api_key", true)
}

func (s *APIServer) handleSchedulerToggle(w http.ResponseWriter, r *http.Request, attemptType, credentialKey string, targetActive bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	apiKey := r.URL.Query().Get("key")
	if apiKey == "" {
		http.Error(w, "missing API key", http.StatusUnauthorized)
		return
	}

	ok, err := s.checkCredential(credentialKey, apiKey)
	if err != nil {
		slog.Error("retrieving API key", "type", attemptType, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "invalid API key", http.StatusUnauthorized)
		return
	}

	if err := s.service.db.RecordKillSwitchAttempt(attemptType); err != nil {
		slog.Error("error recording attempt", "type", attemptType, "err", err)
	}

	// Clean up old attempts (older than 5 minutes)
	if err := s.service.db.CleanupOldKillSwitchAttempts(5 * time.Minute); err != nil {
		slog.Error("error cleaning up old attempts", "type", attemptType, "err", err)
	}

	count, err := s.service.db.GetRecentKillSwitchAttempts(attemptType, time.Minute)
	if err != nil {
		slog.Error("error checking recent attempts", "type", attemptType, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if count >= 3 {
		if err := s.service.db.SetSchedulerStatus(targetActive); err != nil {
			slog.Error("setting scheduler status", "err", err)
			http.Error(w, "failed to update scheduler", http.StatusInternalServerError)
			return
		}

		if targetActive {
			slog.Info("scheduler restarted via restart endpoint")
		} else {
			slog.Info("kill switch activated - scheduler stopped")
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status":  attemptType + " accepted",
			"message": fmt.Sprintf("Scheduler active: %t", targetActive),
		}); err != nil {
			slog.Error("encoding response", "type", attemptType, "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	attemptsRemaining := 3 - count
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":             "attempt recorded",
		"attempts":           count,
		"attempts_remaining": attemptsRemaining,
		"message":            fmt.Sprintf("Need %d more attempts within 1 minute", attemptsRemaining),
	}); err != nil {
		slog.Error("encoding response", "type", attemptType, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
