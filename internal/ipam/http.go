package ipam

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/SpaghettiHub/maas-sub001/internal/models"

	"github.com/gorilla/mux"
)

type HTTP struct {
	repo  *Repo
	util  *Engine
	alloc *Allocator
}

func NewHTTP(repo *Repo, util *Engine, alloc *Allocator) *HTTP {
	return &HTTP{repo: repo, util: util, alloc: alloc}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// Subnets
	api.HandleFunc("/subnets", h.createSubnet).Methods(http.MethodPost)
	api.HandleFunc("/subnets", h.listSubnets).Methods(http.MethodGet)
	// GET /api/v1/subnets/resolve?ip=10.0.0.5
	api.HandleFunc("/subnets/resolve", h.resolveSubnet).Methods(http.MethodGet)
	api.HandleFunc("/subnets/{id}", h.getSubnet).Methods(http.MethodGet)
	api.HandleFunc("/subnets/{id}", h.deleteSubnet).Methods(http.MethodDelete)

	// Ranges
	// POST /api/v1/subnets/{id}/ranges  { type, start_ip, end_ip, comment }
	api.HandleFunc("/subnets/{id}/ranges", h.createRange).Methods(http.MethodPost)
	api.HandleFunc("/subnets/{id}/ranges", h.listRanges).Methods(http.MethodGet)
	api.HandleFunc("/ranges/{id}", h.deleteRange).Methods(http.MethodDelete)

	// Utilization views
	api.HandleFunc("/subnets/{id}/free-ranges", h.freeRanges).Methods(http.MethodGet)
	// GET /api/v1/subnets/{id}/available?for=dynamic&exclude=3
	api.HandleFunc("/subnets/{id}/available", h.availableRanges).Methods(http.MethodGet)
	api.HandleFunc("/subnets/{id}/utilization", h.utilization).Methods(http.MethodGet)

	// Allocation
	// POST /api/v1/addresses/reserve  { ip, mac, subnet_id, comment }
	api.HandleFunc("/addresses/reserve", h.reserve).Methods(http.MethodPost)
	api.HandleFunc("/interfaces/{id}/links", h.link).Methods(http.MethodPost)
	api.HandleFunc("/interfaces/{id}/links/{addr}", h.unlink).Methods(http.MethodDelete)
}

// pathID — uint из path-переменной; 0 — невалидно.
func pathID(r *http.Request, name string) (uint, bool) {
	u, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || u == 0 {
		return 0, false
	}
	return uint(u), true
}

func (h *HTTP) createSubnet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Name       string `json:"name"`
		CIDR       string `json:"cidr"`
		GatewayIP  string `json:"gateway_ip"`
		DNSServers string `json:"dns_servers"`
		VLANID     uint   `json:"vlan_id"`
		Managed    *bool  `json:"managed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.CIDR == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid body (need {cidr, ...})", nil)
		return
	}
	s := &models.Subnet{
		Name:       in.Name,
		CIDR:       in.CIDR,
		GatewayIP:  in.GatewayIP,
		DNSServers: in.DNSServers,
		VLANID:     in.VLANID,
		Managed:    in.Managed == nil || *in.Managed,
		AllowDNS:   true,
	}
	if err := h.repo.CreateSubnet(s); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(s)
}

func (h *HTTP) listSubnets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	subnets, err := h.repo.ListSubnets()
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(subnets)
}

func (h *HTTP) getSubnet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid subnet id", nil)
		return
	}
	s, err := h.repo.GetSubnet(id)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(s)
}

func (h *HTTP) deleteSubnet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid subnet id", nil)
		return
	}
	if err := h.repo.DeleteSubnet(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) createRange(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid subnet id", nil)
		return
	}
	var in struct {
		Type    string `json:"type"`
		StartIP string `json:"start_ip"`
		EndIP   string `json:"end_ip"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid body (need {type, start_ip, end_ip})", nil)
		return
	}
	ir := &models.IPRange{
		SubnetID: id,
		Type:     in.Type,
		StartIP:  in.StartIP,
		EndIP:    in.EndIP,
		Comment:  in.Comment,
	}
	if err := h.repo.CreateIPRange(ir); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ir)
}

func (h *HTTP) listRanges(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid subnet id", nil)
		return
	}
	ranges, err := h.repo.GetRanges(id, r.URL.Query().Get("type"), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(ranges)
}

func (h *HTTP) deleteRange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid range id", nil)
		return
	}
	if err := h.repo.DeleteIPRange(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
