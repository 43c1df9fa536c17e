package ipam

import (
	"net/netip"
	"sort"
	"strings"

	"github.com/SpaghettiHub/maas-sub001/internal/ipset"
	"github.com/SpaghettiHub/maas-sub001/internal/models"
)

// Engine — read-side расчёт занятости сабнета поверх ipset.
// Все операции только читают и считают в рамках одного снапшота
// (транзакцию даёт вызывающий через Repo.Transaction).
type Engine struct{ repo *Repo }

func NewEngine(repo *Repo) *Engine { return &Engine{repo: repo} }

// subnetSpan — границы сети. Для v4-сетей короче /31 адрес сети и
// броадкаст считаются занятыми всегда.
func subnetSpan(s *models.Subnet) (netip.Prefix, netip.Addr, netip.Addr, error) {
	p, err := netip.ParsePrefix(s.CIDR)
	if err != nil {
		return netip.Prefix{}, netip.Addr{}, netip.Addr{}, validation("cidr", "subnet %d has bad cidr %q", s.ID, s.CIDR)
	}
	first, last := ipset.NetworkSpan(p)
	return p, first, last, nil
}

// implicitReserved — неявно занятые адреса: сеть/броадкаст, шлюз,
// служебные v6-диапазоны (::1-::ffff:ffff у /64 и anycast-адрес роутера).
func implicitReserved(s *models.Subnet, p netip.Prefix, first, last netip.Addr) []ipset.Range {
	var out []ipset.Range
	if p.Addr().Is4() {
		out = append(out, ipset.Single(first, ipset.PurposeReserved))
		if p.Bits() < 31 {
			out = append(out, ipset.Single(last, ipset.PurposeReserved))
		}
	} else {
		if p.Bits() < 127 {
			// subnet-router anycast, RFC 4291 2.6.1
			out = append(out, ipset.Single(first, ipset.PurposeReserved))
		}
		if p.Bits() == 64 {
			out = append(out, ipset.Range{
				Start:   ipset.AddOffset(first, 1),
				End:     ipset.AddOffset(first, 0xFFFFFFFF),
				Purpose: ipset.PurposeReserved,
			})
		}
	}
	if gw, err := netip.ParseAddr(s.GatewayIP); err == nil && p.Contains(gw) {
		out = append(out, ipset.Single(gw, ipset.PurposeReserved))
	}
	return out
}

// dnsServerRanges — адреса DNS-серверов, попадающие внутрь сети.
func dnsServerRanges(s *models.Subnet, p netip.Prefix) []ipset.Range {
	var out []ipset.Range
	for _, raw := range strings.Split(s.DNSServers, ",") {
		a, err := netip.ParseAddr(strings.TrimSpace(raw))
		if err != nil || !p.Contains(a) {
			continue
		}
		out = append(out, ipset.Single(a, ipset.PurposeReserved))
	}
	return out
}

func (e *Engine) rangeSet(subnetID uint, kind, purpose string, excludeID *uint) ([]ipset.Range, error) {
	rows, err := e.repo.GetRanges(subnetID, kind, excludeID)
	if err != nil {
		return nil, err
	}
	out := make([]ipset.Range, 0, len(rows))
	for _, row := range rows {
		r, err := ipset.Parse(row.StartIP, row.EndIP, purpose)
		if err != nil {
			continue // битая запись не должна валить весь расчёт
		}
		out = append(out, r)
	}
	return out, nil
}

func (e *Engine) allocatedSet(subnetID uint, includeDiscovered bool) ([]ipset.Range, error) {
	rows, err := e.repo.LiveAddresses(subnetID, includeDiscovered)
	if err != nil {
		return nil, err
	}
	out := make([]ipset.Range, 0, len(rows))
	for _, row := range rows {
		a, err := netip.ParseAddr(row.IP)
		if err != nil {
			continue
		}
		out = append(out, ipset.Single(a.Unmap(), ipset.PurposeAllocated))
	}
	return out, nil
}

// FreeRanges — дыры, не покрытые ни reserved-, ни dynamic-диапазонами,
// ни живыми адресами.
func (e *Engine) FreeRanges(s *models.Subnet) ([]ipset.Range, error) {
	p, first, last, err := subnetSpan(s)
	if err != nil {
		return nil, err
	}
	used := implicitReserved(s, p, first, last)
	for _, load := range []func() ([]ipset.Range, error){
		func() ([]ipset.Range, error) {
			return e.rangeSet(s.ID, models.RangeTypeReserved, ipset.PurposeReserved, nil)
		},
		func() ([]ipset.Range, error) {
			return e.rangeSet(s.ID, models.RangeTypeDynamic, ipset.PurposeDynamic, nil)
		},
		func() ([]ipset.Range, error) { return e.allocatedSet(s.ID, true) },
	} {
		rs, err := load()
		if err != nil {
			return nil, err
		}
		used = append(used, rs...)
	}
	return ipset.UnusedWithin(first, last, used), nil
}

// RangesAvailableForReservedRange — куда можно положить reserved-диапазон:
// всё, что не занято другими reserved- и dynamic-диапазонами.
// excludeRangeID выкидывает сам диапазон при ресайзе.
func (e *Engine) RangesAvailableForReservedRange(s *models.Subnet, excludeRangeID *uint) ([]ipset.Range, error) {
	p, first, last, err := subnetSpan(s)
	if err != nil {
		return nil, err
	}
	used := implicitReserved(s, p, first, last)
	reserved, err := e.rangeSet(s.ID, models.RangeTypeReserved, ipset.PurposeReserved, excludeRangeID)
	if err != nil {
		return nil, err
	}
	dynamic, err := e.rangeSet(s.ID, models.RangeTypeDynamic, ipset.PurposeDynamic, excludeRangeID)
	if err != nil {
		return nil, err
	}
	used = append(used, reserved...)
	used = append(used, dynamic...)
	return ipset.UnusedWithin(first, last, used), nil
}

// RangesAvailableForDynamicRange — симметрично reserved-случаю, но
// dynamic-диапазон не может накрывать шлюз, DNS-серверы и уже выданные
// статические адреса (DISCOVERED не в счёт — их выдал сам DHCP).
func (e *Engine) RangesAvailableForDynamicRange(s *models.Subnet, excludeRangeID *uint) ([]ipset.Range, error) {
	p, first, last, err := subnetSpan(s)
	if err != nil {
		return nil, err
	}
	used := implicitReserved(s, p, first, last)
	used = append(used, dnsServerRanges(s, p)...)
	reserved, err := e.rangeSet(s.ID, models.RangeTypeReserved, ipset.PurposeReserved, excludeRangeID)
	if err != nil {
		return nil, err
	}
	dynamic, err := e.rangeSet(s.ID, models.RangeTypeDynamic, ipset.PurposeDynamic, excludeRangeID)
	if err != nil {
		return nil, err
	}
	allocated, err := e.allocatedSet(s.ID, false)
	if err != nil {
		return nil, err
	}
	used = append(used, reserved...)
	used = append(used, dynamic...)
	used = append(used, allocated...)
	return ipset.UnusedWithin(first, last, used), nil
}

// RangesForAllocation — свободное место под выдачу нового адреса.
// excludeAddresses — адреса, которые прямо сейчас согласуются в этом же
// запросе и ещё не легли в стор.
func (e *Engine) RangesForAllocation(s *models.Subnet, excludeAddresses []netip.Addr) ([]ipset.Range, error) {
	free, err := e.FreeRanges(s)
	if err != nil {
		return nil, err
	}
	if len(excludeAddresses) == 0 {
		return free, nil
	}
	_, first, last, err := subnetSpan(s)
	if err != nil {
		return nil, err
	}
	used := make([]ipset.Range, 0, len(excludeAddresses))
	for _, a := range excludeAddresses {
		used = append(used, ipset.Single(a.Unmap(), ipset.PurposeAllocated))
	}
	// дыры минус исключённые адреса = дополнение (занятое ∪ исключённое)
	inUse := ipset.UnusedWithin(first, last, free)
	used = append(used, inUse...)
	return ipset.UnusedWithin(first, last, used), nil
}

// NextAddressForAllocation picks the best candidate address: из самого
// маленького свободного интервала, при равенстве — с меньшим началом.
// Большие интервалы придерживаются для запросов, которым нужны именно они.
func (e *Engine) NextAddressForAllocation(s *models.Subnet, excludeAddresses []netip.Addr) (netip.Addr, error) {
	free, err := e.RangesForAllocation(s, excludeAddresses)
	if err != nil {
		return netip.Addr{}, err
	}
	if len(free) == 0 {
		return netip.Addr{}, conflict("no more IPs available in subnet %s", s.CIDR)
	}
	sort.Slice(free, func(i, j int) bool {
		ni, nj := free[i].NumAddresses(), free[j].NumAddresses()
		if ni != nj {
			return ni < nj
		}
		return free[i].Start.Compare(free[j].Start) < 0
	})
	return free[0].Start, nil
}

// Utilization — полная раскладка CIDR по типам занятости.
func (e *Engine) Utilization(s *models.Subnet) ([]ipset.Range, error) {
	p, first, last, err := subnetSpan(s)
	if err != nil {
		return nil, err
	}
	used := implicitReserved(s, p, first, last)
	reserved, err := e.rangeSet(s.ID, models.RangeTypeReserved, ipset.PurposeReserved, nil)
	if err != nil {
		return nil, err
	}
	dynamic, err := e.rangeSet(s.ID, models.RangeTypeDynamic, ipset.PurposeDynamic, nil)
	if err != nil {
		return nil, err
	}
	allocated, err := e.allocatedSet(s.ID, true)
	if err != nil {
		return nil, err
	}
	used = append(used, reserved...)
	used = append(used, dynamic...)
	used = append(used, allocated...)
	return ipset.Breakdown(first, last, used), nil
}
