package dnssync

import (
	"errors"

	"github.com/SpaghettiHub/maas-sub001/internal/models"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Domains ──────────────────────────────────────────────────

func (r *Repo) GetDomain(id uint) (*models.Domain, error) {
	var d models.Domain
	if err := r.db.First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) DefaultDomain() (*models.Domain, error) {
	var d models.Domain
	err := r.db.Where("is_default = ?", true).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.db.Order("id").First(&d).Error
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// EnsureDefaultDomain — создаёт дефолтную зону при первом старте.
func (r *Repo) EnsureDefaultDomain(name string) (*models.Domain, error) {
	var d models.Domain
	err := r.db.Where("name = ?", name).First(&d).Error
	if err == nil {
		return &d, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	d = models.Domain{Name: name, Authoritative: true, IsDefault: true}
	if err := r.db.Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) GetNode(id uint) (*models.Node, error) {
	var n models.Node
	if err := r.db.First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ── DNS resources ────────────────────────────────────────────

// GetOrCreateResource возвращает (resource, created).
func (r *Repo) GetOrCreateResource(name string, domainID uint, dynamic bool) (*models.DNSResource, bool, error) {
	var res models.DNSResource
	err := r.db.Where("name = ? AND domain_id = ?", name, domainID).First(&res).Error
	if err == nil {
		return &res, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	res = models.DNSResource{Name: name, DomainID: domainID, Dynamic: dynamic}
	if err := r.db.Create(&res).Error; err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

func (r *Repo) DeleteResource(id uint) error {
	return r.db.Delete(&models.DNSResource{}, id).Error
}

// ResourcesForAddressInDomain — ресурсы зоны, слинкованные с адресом.
func (r *Repo) ResourcesForAddressInDomain(sipID, domainID uint) ([]models.DNSResource, error) {
	var links []models.DNSResourceIP
	if err := r.db.Where("static_ip_address_id = ?", sipID).Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	ids := make([]uint, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.DNSResourceID)
	}
	var out []models.DNSResource
	err := r.db.Where("id IN ? AND domain_id = ?", ids, domainID).Order("id").Find(&out).Error
	return out, err
}

// ── Resource <-> address links (явный счётчик ссылок) ────────

func (r *Repo) LinkAddress(resID, sipID uint) error {
	var existing models.DNSResourceIP
	err := r.db.Where("dns_resource_id = ? AND static_ip_address_id = ?", resID, sipID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	link := models.DNSResourceIP{DNSResourceID: resID, StaticIPAddressID: sipID}
	return r.db.Create(&link).Error
}

func (r *Repo) UnlinkAddress(resID, sipID uint) error {
	return r.db.Where("dns_resource_id = ? AND static_ip_address_id = ?", resID, sipID).
		Delete(&models.DNSResourceIP{}).Error
}

func (r *Repo) LinkCount(resID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.DNSResourceIP{}).Where("dns_resource_id = ?", resID).Count(&n).Error
	return n, err
}

// ── Publications (append-only) ───────────────────────────────

func (r *Repo) Publish(pub *models.DNSPublication) error {
	return r.db.Create(pub).Error
}

// PublicationsSince — журнал по порядку, для выгрузки наружу.
func (r *Repo) PublicationsSince(afterID uint) ([]models.DNSPublication, error) {
	var out []models.DNSPublication
	err := r.db.Where("id > ?", afterID).Order("id").Find(&out).Error
	return out, err
}
