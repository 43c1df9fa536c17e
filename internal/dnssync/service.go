// Package dnssync keeps the denormalized DNS view (DNSResource rows and
// the append-only DNSPublication log) consistent with interface/address
// link changes.
package dnssync

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/SpaghettiHub/maas-sub001/internal/models"
)

type Service struct{ repo *Repo }

func NewService(repo *Repo) *Service { return &Service{repo: repo} }

var labelStrip = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeLabel нормализует hostname до валидной DNS-метки (lowercase,
// [a-z0-9-], без дефисов по краям, не длиннее 63).
func SanitizeLabel(hostname string) string {
	s := strings.ToLower(strings.TrimSpace(hostname))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	s = labelStrip.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	if len(s) > 63 {
		s = strings.Trim(s[:63], "-")
	}
	return s
}

func rtypeFor(ip string) string {
	a, err := netip.ParseAddr(ip)
	if err != nil || a.Unmap().Is4() {
		return "A"
	}
	return "AAAA"
}

func ttlFor(res *models.DNSResource, domain *models.Domain) int {
	if res != nil && res.AddressTTL != nil {
		return *res.AddressTTL
	}
	if domain.TTL != nil {
		return *domain.TTL
	}
	return models.DefaultDNSTTL
}

// labelFor — каноническая метка пары (интерфейс, узел): hostname узла для
// boot-интерфейса, иначе "{iface}.{hostname}".
func labelFor(iface *models.Interface, node *models.Node) string {
	host := SanitizeLabel(node.Hostname)
	if node.BootInterfaceID != nil && *node.BootInterfaceID == iface.ID {
		return host
	}
	return SanitizeLabel(iface.Name) + "." + host
}

// OnLink регистрирует адрес в DNS-виде после привязки к интерфейсу.
func (s *Service) OnLink(iface *models.Interface, sip *models.StaticIPAddress) error {
	if iface == nil || sip == nil || sip.IP == "" || iface.NodeID == nil {
		return nil
	}
	node, err := s.repo.GetNode(*iface.NodeID)
	if err != nil {
		return fmt.Errorf("dns link: node %d: %w", *iface.NodeID, err)
	}
	domain, err := s.domainForNode(node)
	if err != nil {
		return err
	}
	label := labelFor(iface, node)
	if label == "" {
		return nil
	}
	res, _, err := s.repo.GetOrCreateResource(label, domain.ID, true)
	if err != nil {
		return err
	}
	if err := s.repo.LinkAddress(res.ID, sip.ID); err != nil {
		return err
	}
	return s.repo.Publish(&models.DNSPublication{
		Action: models.DNSActionInsert,
		Label:  label,
		Rtype:  rtypeFor(sip.IP),
		Zone:   domain.Name,
		TTL:    ttlFor(res, domain),
		Source: fmt.Sprintf("ip %s connected to %s on %s", sip.IP, node.Hostname, iface.Name),
	})
}

// OnUnlink снимает адрес из DNS-вида. Авто-чистим только DISCOVERED:
// вручную назначенные адреса из DNS при анлинке не выпадают.
func (s *Service) OnUnlink(iface *models.Interface, sip *models.StaticIPAddress) error {
	if sip == nil || sip.AllocType != models.AllocDiscovered {
		return nil
	}
	return s.release(sip)
}

// ReleaseDynamicHostname убирает адрес из всех динамических ресурсов
// дефолтной зоны; опустевший динамический ресурс удаляется целиком.
func (s *Service) ReleaseDynamicHostname(sip *models.StaticIPAddress) error {
	return s.release(sip)
}

func (s *Service) release(sip *models.StaticIPAddress) error {
	domain, err := s.repo.DefaultDomain()
	if err != nil {
		return fmt.Errorf("dns release: default domain: %w", err)
	}
	resources, err := s.repo.ResourcesForAddressInDomain(sip.ID, domain.ID)
	if err != nil {
		return err
	}
	for i := range resources {
		res := &resources[i]
		if err := s.repo.UnlinkAddress(res.ID, sip.ID); err != nil {
			return err
		}
		remaining, err := s.repo.LinkCount(res.ID)
		if err != nil {
			return err
		}
		action := models.DNSActionUpdate
		if remaining == 0 && res.Dynamic {
			if err := s.repo.DeleteResource(res.ID); err != nil {
				return err
			}
			action = models.DNSActionDelete
		}
		if err := s.repo.Publish(&models.DNSPublication{
			Action: action,
			Label:  res.Name,
			Rtype:  rtypeFor(sip.IP),
			Zone:   domain.Name,
			TTL:    ttlFor(res, domain),
			Source: fmt.Sprintf("ip %s released from %s.%s", sip.IP, res.Name, domain.Name),
		}); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDynamicHostname — unlink-then-relink под новой меткой.
// Существующую не-динамическую запись с тем же именем не трогаем: её
// завёл оператор, DHCP-наблюдение не должно её перехватывать.
func (s *Service) UpdateDynamicHostname(sip *models.StaticIPAddress, hostname string) error {
	label := SanitizeLabel(hostname)
	if label == "" {
		return fmt.Errorf("hostname %q sanitizes to an empty dns label", hostname)
	}
	if err := s.release(sip); err != nil {
		return err
	}
	domain, err := s.repo.DefaultDomain()
	if err != nil {
		return err
	}
	res, created, err := s.repo.GetOrCreateResource(label, domain.ID, true)
	if err != nil {
		return err
	}
	if !created && !res.Dynamic {
		return nil
	}
	if err := s.repo.LinkAddress(res.ID, sip.ID); err != nil {
		return err
	}
	return s.repo.Publish(&models.DNSPublication{
		Action: models.DNSActionInsert,
		Label:  label,
		Rtype:  rtypeFor(sip.IP),
		Zone:   domain.Name,
		TTL:    ttlFor(res, domain),
		Source: fmt.Sprintf("ip %s claimed hostname %s", sip.IP, label),
	})
}

func (s *Service) domainForNode(node *models.Node) (*models.Domain, error) {
	if node.DomainID != 0 {
		if d, err := s.repo.GetDomain(node.DomainID); err == nil {
			return d, nil
		}
	}
	return s.repo.DefaultDomain()
}
