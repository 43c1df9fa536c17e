package ipam

import (
	"net/netip"
	"strings"

	"github.com/SpaghettiHub/maas-sub001/internal/logs"
	"github.com/SpaghettiHub/maas-sub001/internal/models"
	"github.com/SpaghettiHub/maas-sub001/internal/workflow"
)

// DNSSynchronizer — контракт DNS-вида (internal/dnssync).
type DNSSynchronizer interface {
	OnLink(iface *models.Interface, sip *models.StaticIPAddress) error
	OnUnlink(iface *models.Interface, sip *models.StaticIPAddress) error
}

// WorkflowRegistrar — контракт коалесера заданий (internal/workflow).
type WorkflowRegistrar interface {
	RegisterOrUpdate(jobName string, param any, merge workflow.MergeFunc, wait bool) error
}

// Allocator validates and persists static address assignments and fans
// out the DNS / DHCP side effects. dns и flows могут быть nil (тесты,
// режим без side effects).
type Allocator struct {
	repo  *Repo
	util  *Engine
	dns   DNSSynchronizer
	flows WorkflowRegistrar
}

func NewAllocator(repo *Repo, util *Engine, dns DNSSynchronizer, flows WorkflowRegistrar) *Allocator {
	return &Allocator{repo: repo, util: util, dns: dns, flows: flows}
}

type ReserveRequest struct {
	IP       netip.Addr
	MAC      string
	SubnetID *uint
	Comment  string
}

// Reserve — явная пользовательская резервация адреса (USER_RESERVED).
// Валидация по порядку, каждая ступень падает своей ошибкой:
// 1) адрес уже привязан к другому MAC — Conflict;
// 2) адрес внутри dynamic-диапазона — Validation;
// 3) сабнет не задан: резолвим; нет подходящего, адрес сети/броадкаст,
//    адрес вне CIDR — Validation;
// 4) записываем, сохранён резолвнутый subnet_id.
func (a *Allocator) Reserve(req ReserveRequest) (*models.StaticIPAddress, error) {
	if !req.IP.IsValid() {
		return nil, validation("ip", "ip address is required")
	}
	ip := req.IP.Unmap()
	mac := strings.ToLower(strings.TrimSpace(req.MAC))

	var out *models.StaticIPAddress
	err := a.repo.Transaction(func(tx *Repo) error {
		if err := a.checkMACConflict(tx, ip, mac); err != nil {
			return err
		}

		subnet, err := a.resolveSubnet(tx, ip, req.SubnetID)
		if err != nil {
			return err
		}
		if err := tx.LockSubnet(subnet.ID); err != nil {
			return err
		}
		if err := a.checkPlacement(tx, subnet, ip); err != nil {
			return err
		}

		sid := subnet.ID
		sip := &models.StaticIPAddress{
			IP:        ip.String(),
			AllocType: models.AllocUserReserved,
			SubnetID:  &sid,
			Comment:   req.Comment,
		}
		if err := tx.CreateStaticIP(sip); err != nil {
			return err
		}
		out = sip
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkMACConflict — адрес, уже живущий под другим MAC, резервировать нельзя.
func (a *Allocator) checkMACConflict(tx *Repo, ip netip.Addr, mac string) error {
	existing, err := tx.FindLiveByIP(ip.String(),
		models.AllocAuto, models.AllocSticky, models.AllocUserReserved)
	if err != nil {
		return err
	}
	for _, sip := range existing {
		macs, err := tx.MACsForAddress(sip.ID)
		if err != nil {
			return err
		}
		for _, m := range macs {
			if m != mac {
				return conflict("ip %s is already attached to interface with MAC %s", ip, m)
			}
		}
	}
	return nil
}

func (a *Allocator) resolveSubnet(tx *Repo, ip netip.Addr, subnetID *uint) (*models.Subnet, error) {
	if subnetID != nil {
		return tx.GetSubnet(*subnetID)
	}
	subnet, err := tx.FindBestSubnetForIP(ip)
	if err != nil {
		return nil, err
	}
	if subnet == nil {
		return nil, validation("subnet", "no suitable subnet found for %s", ip)
	}
	return subnet, nil
}

// checkPlacement — адрес внутри CIDR, не сеть/броадкаст, не в
// dynamic-диапазоне. Проверяется и для явного, и для резолвнутого сабнета.
func (a *Allocator) checkPlacement(tx *Repo, subnet *models.Subnet, ip netip.Addr) error {
	p, first, last, err := subnetSpan(subnet)
	if err != nil {
		return err
	}
	if !p.Contains(ip) {
		return validation("ip", "%s is not within subnet %s", ip, subnet.CIDR)
	}
	if ip == first {
		return validation("ip", "%s is the network address of subnet %s", ip, subnet.CIDR)
	}
	if p.Addr().Is4() && p.Bits() < 31 && ip == last {
		return validation("ip", "%s is the broadcast address of subnet %s", ip, subnet.CIDR)
	}
	dynamic, err := tx.GetRanges(subnet.ID, models.RangeTypeDynamic, nil)
	if err != nil {
		return err
	}
	for _, dr := range dynamic {
		start, err1 := netip.ParseAddr(dr.StartIP)
		end, err2 := netip.ParseAddr(dr.EndIP)
		if err1 != nil || err2 != nil {
			continue
		}
		if ip.Compare(start) >= 0 && ip.Compare(end) <= 0 {
			return validation("ip", "%s falls within the dynamic range %s-%s", ip, start, end)
		}
	}
	return nil
}

// LinkRequest — привязка адреса к интерфейсу. IP пустой у AUTO: адрес
// выберем из свободного места сабнета.
type LinkRequest struct {
	InterfaceID uint
	AllocType   models.AllocType
	IP          string
	SubnetID    *uint
	// адреса, согласуемые в этом же запросе и ещё не записанные
	ExcludeAddresses []netip.Addr
}

// Link attaches an existing or freshly-allocated StaticIPAddress to an
// interface, then keeps DNS and DHCP downstream in sync.
func (a *Allocator) Link(req LinkRequest) (*models.StaticIPAddress, error) {
	iface, err := a.repo.GetInterface(req.InterfaceID)
	if err != nil {
		return nil, err
	}

	var sip *models.StaticIPAddress
	err = a.repo.Transaction(func(tx *Repo) error {
		sip, err = a.obtainAddress(tx, req)
		if err != nil {
			return err
		}
		return tx.CreateLink(iface.ID, sip.ID)
	})
	if err != nil {
		return nil, err
	}

	if a.dns != nil {
		if err := a.dns.OnLink(iface, sip); err != nil {
			logs.Logger.Warnf("dns sync on link of %s: %v", sip.IP, err)
		}
	}
	a.triggerDHCP(sip)
	return sip, nil
}

// obtainAddress — переиспользовать живую запись (ip, alloc_type) или
// создать новую; для AUTO без адреса выбрать кандидата из свободного места.
func (a *Allocator) obtainAddress(tx *Repo, req LinkRequest) (*models.StaticIPAddress, error) {
	if req.IP == "" {
		if req.AllocType != models.AllocAuto {
			return nil, validation("ip", "ip address is required for %s allocations", req.AllocType)
		}
		if req.SubnetID == nil {
			return nil, validation("subnet", "subnet is required to auto-allocate an address")
		}
		subnet, err := tx.GetSubnet(*req.SubnetID)
		if err != nil {
			return nil, err
		}
		if err := tx.LockSubnet(subnet.ID); err != nil {
			return nil, err
		}
		util := NewEngine(tx)
		ip, err := util.NextAddressForAllocation(subnet, req.ExcludeAddresses)
		if err != nil {
			return nil, err
		}
		sid := subnet.ID
		sip := &models.StaticIPAddress{IP: ip.String(), AllocType: models.AllocAuto, SubnetID: &sid}
		return sip, tx.CreateStaticIP(sip)
	}

	ip, err := netip.ParseAddr(req.IP)
	if err != nil {
		return nil, validation("ip", "invalid ip %q: %v", req.IP, err)
	}
	ip = ip.Unmap()

	// живую запись того же типа переиспользуем (re-link, shared DISCOVERED)
	existing, err := tx.FindLiveByIP(ip.String(), req.AllocType)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	subnet, err := a.resolveSubnet(tx, ip, req.SubnetID)
	if err != nil {
		return nil, err
	}
	if err := tx.LockSubnet(subnet.ID); err != nil {
		return nil, err
	}
	// управляемые типы не лезут в dynamic-диапазон и на сеть/броадкаст;
	// DISCOVERED/DHCP живут как раз там, их не проверяем
	if req.AllocType.Managed() {
		if err := a.checkPlacement(tx, subnet, ip); err != nil {
			return nil, err
		}
	}
	sid := subnet.ID
	sip := &models.StaticIPAddress{IP: ip.String(), AllocType: req.AllocType, SubnetID: &sid}
	return sip, tx.CreateStaticIP(sip)
}

// Unlink — обратная операция: снять линк, обновить DNS, дёрнуть DHCP.
func (a *Allocator) Unlink(interfaceID, addressID uint) error {
	iface, err := a.repo.GetInterface(interfaceID)
	if err != nil {
		return err
	}
	sip, err := a.repo.GetStaticIP(addressID)
	if err != nil {
		return err
	}
	if err := a.repo.DeleteLink(iface.ID, sip.ID); err != nil {
		return err
	}

	if a.dns != nil {
		if err := a.dns.OnUnlink(iface, sip); err != nil {
			logs.Logger.Warnf("dns sync on unlink of %s: %v", sip.IP, err)
		}
	}
	a.triggerDHCP(sip)
	return nil
}

// triggerDHCP — пересборка DHCP нужна только для управляемых типов;
// DISCOVERED выдал сам DHCP-сервер, его не перенастраиваем.
func (a *Allocator) triggerDHCP(sip *models.StaticIPAddress) {
	if a.flows == nil || !sip.AllocType.Managed() {
		return
	}
	param := workflow.ConfigureDHCPParam{StaticIPIDs: []uint{sip.ID}}
	if sip.SubnetID != nil {
		param.SubnetIDs = []uint{*sip.SubnetID}
	}
	err := a.flows.RegisterOrUpdate(workflow.ConfigureDHCPJob, param, workflow.MergeConfigureDHCP, false)
	if err != nil {
		logs.Logger.Warnf("register %s for ip %s: %v", workflow.ConfigureDHCPJob, sip.IP, err)
	}
}
