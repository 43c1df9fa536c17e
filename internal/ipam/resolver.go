package ipam

import (
	"net/netip"
	"sort"

	"github.com/SpaghettiHub/maas-sub001/internal/models"
)

// FindBestSubnetForIP — самый подходящий сабнет для адреса:
// 1) сабнет на VLAN с включённым DHCP важнее неуправляемого,
// 2) затем самый длинный префикс,
// 3) затем наименьший id — чтобы выбор был детерминированным.
// nil, nil когда адрес не попадает ни в одну сеть.
func (r *Repo) FindBestSubnetForIP(ip netip.Addr) (*models.Subnet, error) {
	candidates, err := r.SubnetsContaining(ip.Unmap())
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DHCPOn != b.DHCPOn {
			return a.DHCPOn
		}
		pa, _ := netip.ParsePrefix(a.CIDR)
		pb, _ := netip.ParsePrefix(b.CIDR)
		if pa.Bits() != pb.Bits() {
			return pa.Bits() > pb.Bits()
		}
		return a.ID < b.ID
	})
	best := candidates[0].Subnet
	return &best, nil
}
