package dnssync

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/SpaghettiHub/maas-sub001/internal/models"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type HTTP struct {
	repo *Repo
	svc  *Service
	db   *gorm.DB
}

func NewHTTP(repo *Repo, svc *Service, db *gorm.DB) *HTTP {
	return &HTTP{repo: repo, svc: svc, db: db}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/dns").Subrouter()

	// GET /api/v1/dns/publications?after=42 — хвост журнала по порядку
	api.HandleFunc("/publications", h.publications).Methods(http.MethodGet)

	// POST /api/v1/dns/hostname  { static_ip_id, hostname } — hostname из
	// DHCP-лиза: перелинковать адрес под новой меткой
	api.HandleFunc("/hostname", h.claimHostname).Methods(http.MethodPost)
}

func (h *HTTP) publications(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		u, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid after id", nil)
			return
		}
		after = u
	}
	pubs, err := h.repo.PublicationsSince(uint(after))
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), nil)
		return
	}
	_ = json.NewEncoder(w).Encode(pubs)
}

func (h *HTTP) claimHostname(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		StaticIPID uint   `json:"static_ip_id"`
		Hostname   string `json:"hostname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.StaticIPID == 0 || in.Hostname == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid body (need {static_ip_id, hostname})", nil)
		return
	}
	var sip models.StaticIPAddress
	if err := h.db.First(&sip, in.StaticIPID).Error; err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not found", err.Error(), nil)
		return
	}
	if err := h.svc.UpdateDynamicHostname(&sip, in.Hostname); err != nil {
		models.WriteProblem(w, http.StatusUnprocessableEntity, "Hostname update failed", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
