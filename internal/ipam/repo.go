package ipam

import (
	"errors"
	"net/netip"
	"strings"

	"github.com/SpaghettiHub/maas-sub001/internal/models"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// Transaction — все мутации ядра идут внутри транзакции вызывающего.
func (r *Repo) Transaction(fn func(tx *Repo) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// LockSubnet serializes concurrent allocations against one subnet.
// На postgres это advisory lock на время транзакции, на остальных
// диалектах полагаемся на изоляцию стора.
func (r *Repo) LockSubnet(subnetID uint) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.Exec(`SELECT pg_advisory_xact_lock(?, ?)`, lockClassSubnet, int64(subnetID)).Error
}

const lockClassSubnet = 7401

// ── Subnets ──────────────────────────────────────────────────

// CreateSubnet — валидирует и нормализует CIDR (хранится адрес сети).
func (r *Repo) CreateSubnet(s *models.Subnet) error {
	p, err := netip.ParsePrefix(strings.TrimSpace(s.CIDR))
	if err != nil {
		return validation("cidr", "invalid cidr %q: %v", s.CIDR, err)
	}
	s.CIDR = p.Masked().String()
	if gw := strings.TrimSpace(s.GatewayIP); gw != "" {
		a, err := netip.ParseAddr(gw)
		if err != nil {
			return validation("gateway_ip", "invalid gateway %q: %v", gw, err)
		}
		if a.Is4() != p.Addr().Is4() {
			return validation("gateway_ip", "gateway family does not match subnet %s", s.CIDR)
		}
		s.GatewayIP = a.String()
	}
	return translateStoreError(r.db.Create(s).Error, "subnet", s.CIDR)
}

func (r *Repo) GetSubnet(id uint) (*models.Subnet, error) {
	var s models.Subnet
	if err := r.db.First(&s, id).Error; err != nil {
		return nil, translateStoreError(err, "subnet", id)
	}
	return &s, nil
}

func (r *Repo) ListSubnets() ([]models.Subnet, error) {
	var out []models.Subnet
	err := r.db.Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) DeleteSubnet(id uint) error {
	return r.db.Delete(&models.Subnet{}, id).Error
}

func (r *Repo) GetVLAN(id uint) (*models.VLAN, error) {
	var v models.VLAN
	if err := r.db.First(&v, id).Error; err != nil {
		return nil, translateStoreError(err, "vlan", id)
	}
	return &v, nil
}

// SubnetsContaining returns every subnet whose CIDR covers ip, вместе с
// dhcp-флагом VLAN'а. Сеток немного, фильтруем в Go.
func (r *Repo) SubnetsContaining(ip netip.Addr) ([]subnetWithVLAN, error) {
	var subnets []models.Subnet
	if err := r.db.Order("id").Find(&subnets).Error; err != nil {
		return nil, err
	}
	var out []subnetWithVLAN
	for _, s := range subnets {
		p, err := netip.ParsePrefix(s.CIDR)
		if err != nil {
			continue
		}
		if !p.Contains(ip.Unmap()) {
			continue
		}
		dhcpOn := false
		if s.VLANID != 0 {
			if v, err := r.GetVLAN(s.VLANID); err == nil {
				dhcpOn = v.DHCPOn
			}
		}
		out = append(out, subnetWithVLAN{Subnet: s, DHCPOn: dhcpOn})
	}
	return out, nil
}

type subnetWithVLAN struct {
	models.Subnet
	DHCPOn bool
}

// ── IP ranges ────────────────────────────────────────────────

func (r *Repo) CreateIPRange(ir *models.IPRange) error {
	if ir.Type != models.RangeTypeDynamic && ir.Type != models.RangeTypeReserved {
		return validation("type", "range type must be dynamic or reserved, got %q", ir.Type)
	}
	s, err := r.GetSubnet(ir.SubnetID)
	if err != nil {
		return err
	}
	p, _ := netip.ParsePrefix(s.CIDR)
	start, err := netip.ParseAddr(ir.StartIP)
	if err != nil {
		return validation("start_ip", "invalid start ip %q", ir.StartIP)
	}
	end, err := netip.ParseAddr(ir.EndIP)
	if err != nil {
		return validation("end_ip", "invalid end ip %q", ir.EndIP)
	}
	if start.Compare(end) > 0 {
		return validation("start_ip", "start %s after end %s", start, end)
	}
	// интервал целиком внутри родительской сети
	if !p.Contains(start) || !p.Contains(end) {
		return validation("start_ip", "range %s-%s not within subnet %s", start, end, s.CIDR)
	}
	ir.StartIP, ir.EndIP = start.String(), end.String()
	return translateStoreError(r.db.Create(ir).Error, "iprange", ir.StartIP)
}

// GetRanges — диапазоны сабнета данного типа; excludeID поддерживает
// сценарий "ресайз этого диапазона".
func (r *Repo) GetRanges(subnetID uint, kind string, excludeID *uint) ([]models.IPRange, error) {
	q := r.db.Where("subnet_id = ? AND type = ?", subnetID, kind)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var out []models.IPRange
	err := q.Order("start_ip").Find(&out).Error
	return out, err
}

func (r *Repo) GetIPRange(id uint) (*models.IPRange, error) {
	var ir models.IPRange
	if err := r.db.First(&ir, id).Error; err != nil {
		return nil, translateStoreError(err, "iprange", id)
	}
	return &ir, nil
}

func (r *Repo) DeleteIPRange(id uint) error {
	return r.db.Delete(&models.IPRange{}, id).Error
}

// ── Static addresses ─────────────────────────────────────────

// LiveAddresses — записи с непустым ip в сабнете. includeDiscovered=false
// отсекает наблюдаемые DHCP-адреса (нужно при размещении dynamic-диапазона).
func (r *Repo) LiveAddresses(subnetID uint, includeDiscovered bool) ([]models.StaticIPAddress, error) {
	q := r.db.Where("subnet_id = ? AND ip <> ''", subnetID)
	if !includeDiscovered {
		q = q.Where("alloc_type <> ?", models.AllocDiscovered)
	}
	var out []models.StaticIPAddress
	err := q.Order("ip").Find(&out).Error
	return out, err
}

func (r *Repo) CreateStaticIP(sip *models.StaticIPAddress) error {
	return translateStoreError(r.db.Create(sip).Error, "static ip", sip.IP)
}

func (r *Repo) SaveStaticIP(sip *models.StaticIPAddress) error {
	return translateStoreError(r.db.Save(sip).Error, "static ip", sip.IP)
}

func (r *Repo) GetStaticIP(id uint) (*models.StaticIPAddress, error) {
	var sip models.StaticIPAddress
	if err := r.db.First(&sip, id).Error; err != nil {
		return nil, translateStoreError(err, "static ip", id)
	}
	return &sip, nil
}

// FindLiveByIP — живые записи с этим адресом указанных типов.
func (r *Repo) FindLiveByIP(ip string, types ...models.AllocType) ([]models.StaticIPAddress, error) {
	q := r.db.Where("ip = ?", ip)
	if len(types) > 0 {
		q = q.Where("alloc_type IN ?", types)
	}
	var out []models.StaticIPAddress
	err := q.Order("id").Find(&out).Error
	return out, err
}

// ── Interfaces / links ───────────────────────────────────────

func (r *Repo) GetInterface(id uint) (*models.Interface, error) {
	var iface models.Interface
	if err := r.db.First(&iface, id).Error; err != nil {
		return nil, translateStoreError(err, "interface", id)
	}
	return &iface, nil
}

func (r *Repo) GetNode(id uint) (*models.Node, error) {
	var n models.Node
	if err := r.db.First(&n, id).Error; err != nil {
		return nil, translateStoreError(err, "node", id)
	}
	return &n, nil
}

func (r *Repo) CreateLink(ifaceID, sipID uint) error {
	var existing models.InterfaceIP
	err := r.db.Where("interface_id = ? AND static_ip_address_id = ?", ifaceID, sipID).
		First(&existing).Error
	if err == nil {
		return nil // уже слинковано
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	link := models.InterfaceIP{InterfaceID: ifaceID, StaticIPAddressID: sipID}
	return translateStoreError(r.db.Create(&link).Error, "link", sipID)
}

func (r *Repo) DeleteLink(ifaceID, sipID uint) error {
	res := r.db.Where("interface_id = ? AND static_ip_address_id = ?", ifaceID, sipID).
		Delete(&models.InterfaceIP{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("link", sipID)
	}
	return nil
}

func (r *Repo) LinksForAddress(sipID uint) ([]models.InterfaceIP, error) {
	var out []models.InterfaceIP
	err := r.db.Where("static_ip_address_id = ?", sipID).Find(&out).Error
	return out, err
}

func (r *Repo) LinksForInterface(ifaceID uint) ([]models.InterfaceIP, error) {
	var out []models.InterfaceIP
	err := r.db.Where("interface_id = ?", ifaceID).Find(&out).Error
	return out, err
}

// MACsForAddress — MAC-адреса интерфейсов, к которым привязан адрес.
func (r *Repo) MACsForAddress(sipID uint) ([]string, error) {
	links, err := r.LinksForAddress(sipID)
	if err != nil {
		return nil, err
	}
	macs := make([]string, 0, len(links))
	for _, l := range links {
		iface, err := r.GetInterface(l.InterfaceID)
		if err != nil {
			continue
		}
		if iface.MAC != "" {
			macs = append(macs, strings.ToLower(iface.MAC))
		}
	}
	return macs, nil
}
