// Package report tracks the progress of an ingestion run and exposes it over HTTP.
package report

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Stage of the ingestion run
type Stage string

// Stages, in order
const (
	StageLogin     Stage = "login"
	StageDatasets  Stage = "dataset-search"
	StageScenes    Stage = "scene-search"
	StageDownloads Stage = "download-request"
	StageFetch     Stage = "fetch"
	StageDone      Stage = "done"
)

// Status of the ingestion run
type Status struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	Stage      Stage     `json:"stage"`
	Datasets   int       `json:"datasets"`
	Scenes     int       `json:"scenes"`
	Ready      int       `json:"ready"`
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
}

// Report is a concurrency-safe Status holder
type Report struct {
	mu     sync.Mutex
	status Status
}

// New creates a Report for the given run
func New(runID string) *Report {
	return &Report{status: Status{RunID: runID, StartedAt: time.Now().UTC(), Stage: StageLogin}}
}

// SetStage updates the current stage
func (r *Report) SetStage(stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Stage = stage
}

// SetDatasets records the number of matched datasets
func (r *Report) SetDatasets(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Datasets = n
}

// SetScenes records the number of downloadable scenes
func (r *Report) SetScenes(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Scenes = n
}

// SetReady records the number of ready downloads
func (r *Report) SetReady(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Ready = n
}

// AddDownloaded increments the completed-download counter
func (r *Report) AddDownloaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Downloaded++
}

// AddFailed increments the failed-download counter
func (r *Report) AddFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Failed++
}

// Status returns a copy of the current status
func (r *Report) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// NewHandler creates the status http handler
func (r *Report) NewHandler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/status", r.GetStatusHandler).Methods("GET")
	router.HandleFunc("/health", r.HealthHandler).Methods("GET")
	return router
}

// GetStatusHandler returns the current run status
func (r *Report) GetStatusHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(r.Status())
}

// HealthHandler returns 200 as long as the process is up
func (r *Report) HealthHandler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(200)
}
