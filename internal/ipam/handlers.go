package ipam

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/SpaghettiHub/maas-sub001/internal/ipset"
	"github.com/SpaghettiHub/maas-sub001/internal/models"

	"github.com/gorilla/mux"
)

// writeError — таксономия ядра в HTTP-статусы.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		models.WriteProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), nil)
	case IsConflict(err):
		models.WriteProblem(w, http.StatusConflict, "Conflict", err.Error(), nil)
	case IsNotFound(err):
		models.WriteProblem(w, http.StatusNotFound, "Not found", err.Error(), nil)
	case IsPrecondition(err):
		models.WriteProblem(w, http.StatusPreconditionFailed, "Precondition failed", err.Error(), nil)
	default:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), nil)
	}
}

type rangeOut struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	Purpose      string `json:"purpose,omitempty"`
	NumAddresses uint64 `json:"num_addresses"`
}

func rangesOut(rs []ipset.Range) []rangeOut {
	out := make([]rangeOut, 0, len(rs))
	for _, r := range rs {
		out = append(out, rangeOut{
			Start:        r.Start.String(),
			End:          r.End.String(),
			Purpose:      r.Purpose,
			NumAddresses: r.NumAddresses(),
		})
	}
	return out
}

func (h *HTTP) subnetFromPath(w http.ResponseWriter, r *http.Request) *models.Subnet {
	id, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid subnet id", nil)
		return nil
	}
	s, err := h.repo.GetSubnet(id)
	if err != nil {
		writeError(w, err)
		return nil
	}
	return s
}

func (h *HTTP) freeRanges(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s := h.subnetFromPath(w, r)
	if s == nil {
		return
	}
	free, err := h.util.FreeRanges(s)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(rangesOut(free))
}

// availableRanges — место под новый (или двигаемый) диапазон.
// ?for=reserved|dynamic, ?exclude={rangeID} при редактировании.
func (h *HTTP) availableRanges(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s := h.subnetFromPath(w, r)
	if s == nil {
		return
	}
	var exclude *uint
	if v := r.URL.Query().Get("exclude"); v != "" {
		u, err := strconv.ParseUint(v, 10, 64)
		if err != nil || u == 0 {
			models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid exclude id", nil)
			return
		}
		id := uint(u)
		exclude = &id
	}

	var (
		ranges []ipset.Range
		err    error
	)
	switch kind := r.URL.Query().Get("for"); kind {
	case models.RangeTypeDynamic:
		ranges, err = h.util.RangesAvailableForDynamicRange(s, exclude)
	case models.RangeTypeReserved, "":
		ranges, err = h.util.RangesAvailableForReservedRange(s, exclude)
	default:
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "for must be reserved or dynamic", nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(rangesOut(ranges))
}

func (h *HTTP) utilization(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s := h.subnetFromPath(w, r)
	if s == nil {
		return
	}
	breakdown, err := h.util.Utilization(s)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(rangesOut(breakdown))
}

func (h *HTTP) resolveSubnet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ip, err := netip.ParseAddr(r.URL.Query().Get("ip"))
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "ip query param required", nil)
		return
	}
	s, err := h.repo.FindBestSubnetForIP(ip)
	if err != nil {
		writeError(w, err)
		return
	}
	if s == nil {
		models.WriteProblem(w, http.StatusNotFound, "Not found", "no subnet contains "+ip.String(), nil)
		return
	}
	_ = json.NewEncoder(w).Encode(s)
}

func (h *HTTP) reserve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		IP       string `json:"ip"`
		MAC      string `json:"mac"`
		SubnetID *uint  `json:"subnet_id"`
		Comment  string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.IP == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid body (need {ip, ...})", nil)
		return
	}
	ip, err := netip.ParseAddr(in.IP)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid ip "+in.IP, nil)
		return
	}
	sip, err := h.alloc.Reserve(ReserveRequest{
		IP:       ip,
		MAC:      in.MAC,
		SubnetID: in.SubnetID,
		Comment:  in.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sip)
}

func (h *HTTP) link(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ifaceID, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid interface id", nil)
		return
	}
	var in struct {
		AllocType models.AllocType `json:"alloc_type"`
		IP        string           `json:"ip"`
		SubnetID  *uint            `json:"subnet_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid body", nil)
		return
	}
	sip, err := h.alloc.Link(LinkRequest{
		InterfaceID: ifaceID,
		AllocType:   in.AllocType,
		IP:          in.IP,
		SubnetID:    in.SubnetID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sip)
}

func (h *HTTP) unlink(w http.ResponseWriter, r *http.Request) {
	ifaceID, ok := pathID(r, "id")
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid interface id", nil)
		return
	}
	addrU, err := strconv.ParseUint(mux.Vars(r)["addr"], 10, 64)
	if err != nil || addrU == 0 {
		models.WriteProblem(w, http.StatusBadRequest, "Bad request", "invalid address id", nil)
		return
	}
	if err := h.alloc.Unlink(ifaceID, uint(addrU)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
