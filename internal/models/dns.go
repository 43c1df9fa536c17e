package models

import "gorm.io/gorm"

// Actions recorded in the DNSPublication log.
const (
	DNSActionInsert = "INSERT"
	DNSActionUpdate = "UPDATE"
	DNSActionDelete = "DELETE"
)

const DefaultDNSTTL = 30

type Domain struct {
	gorm.Model
	Name          string `gorm:"type:varchar(255);uniqueIndex"`
	Authoritative bool   `gorm:"default:true"`
	IsDefault     bool   `gorm:"column:is_default"`
	TTL           *int
}

// DNSResource — hostname label inside a domain, linked to zero or more
// static addresses. Dynamic resources (created by the synchronizer) are
// deleted once the last link goes away.
type DNSResource struct {
	gorm.Model
	Name       string `gorm:"type:varchar(191);index:idx_dnsres_name,priority:1"`
	DomainID   uint   `gorm:"index:idx_dnsres_name,priority:2"`
	AddressTTL *int
	Dynamic    bool // created by dnssync, safe to garbage-collect when empty
}

// DNSResourceIP — link row DNSResource <-> StaticIPAddress. Явный счётчик
// ссылок: удаление ресурса-без-ссылок делает dnssync, не каскады БД.
type DNSResourceIP struct {
	gorm.Model
	DNSResourceID     uint `gorm:"column:dns_resource_id;index:idx_dnsres_ip,priority:1"`
	StaticIPAddressID uint `gorm:"index:idx_dnsres_ip,priority:2"`
}

// DNSPublication — append-only журнал DNS-изменений. Никогда не
// обновляется и не удаляется; serial монотонно растёт (первичный ключ).
type DNSPublication struct {
	gorm.Model
	Action string `gorm:"type:varchar(16);not null"`
	Label  string `gorm:"type:varchar(191)"`
	Rtype  string `gorm:"type:varchar(8)"`
	Zone   string `gorm:"type:varchar(255)"`
	TTL    int
	Source string `gorm:"type:varchar(255)"`
}
