package models

import (
	"time"

	"gorm.io/gorm"
)

// Kinds of IPRange intervals inside a subnet.
const (
	RangeTypeDynamic  = "dynamic"
	RangeTypeReserved = "reserved"
)

// Allocation types of a StaticIPAddress. Values mirror the wire/API codes
// used by the DHCP side, do not renumber.
type AllocType int

const (
	AllocAuto         AllocType = 0
	AllocSticky       AllocType = 1
	AllocUserReserved AllocType = 4
	AllocDHCP         AllocType = 5
	AllocDiscovered   AllocType = 6
)

func (t AllocType) String() string {
	switch t {
	case AllocAuto:
		return "AUTO"
	case AllocSticky:
		return "STICKY"
	case AllocUserReserved:
		return "USER_RESERVED"
	case AllocDHCP:
		return "DHCP"
	case AllocDiscovered:
		return "DISCOVERED"
	default:
		return "UNKNOWN"
	}
}

// Managed returns true when this allocation is handed out by us (and so a
// change to it must be pushed into the DHCP configuration). DISCOVERED and
// plain DHCP entries are observed, not managed.
func (t AllocType) Managed() bool {
	switch t {
	case AllocAuto, AllocSticky, AllocUserReserved:
		return true
	default:
		return false
	}
}

type VLAN struct {
	gorm.Model
	Name   string `gorm:"type:varchar(64)"`
	VID    int    `gorm:"index"`
	DHCPOn bool   `gorm:"column:dhcp_on"`
}

// Subnet — одна L3-сеть, владеет своими IPRange.
type Subnet struct {
	gorm.Model
	Name            string `gorm:"type:varchar(255)"`
	CIDR            string `gorm:"type:varchar(64);uniqueIndex"`
	GatewayIP       string `gorm:"type:varchar(45)"`
	DNSServers      string `gorm:"type:varchar(255)"` // comma-separated
	VLANID          uint   `gorm:"index"`
	Managed         bool   `gorm:"default:true"`
	AllowDNS        bool   `gorm:"column:allow_dns;default:true"`
	AllowProxy      bool   `gorm:"column:allow_proxy;default:true"`
	ActiveDiscovery bool
}

// IPRange — contiguous [start_ip, end_ip] inside the parent subnet,
// either dynamic (DHCP pool) or reserved (kept away from allocation).
type IPRange struct {
	gorm.Model
	SubnetID uint   `gorm:"index;not null"`
	Type     string `gorm:"type:varchar(16);index"`
	StartIP  string `gorm:"type:varchar(45);not null"`
	EndIP    string `gorm:"type:varchar(45);not null"`
	UserID   *uint  `gorm:"index"`
	Comment  string `gorm:"type:varchar(255)"`
}

// StaticIPAddress — одна запись про адрес. IP может быть пустым (AUTO без
// выданного адреса). Уникальность живых записей (ip, alloc_type) держит
// частичный индекс, см. db.MigrateStaticIPUniqueIndex.
type StaticIPAddress struct {
	gorm.Model
	IP           string    `gorm:"type:varchar(45);index"`
	AllocType    AllocType `gorm:"column:alloc_type;index"`
	SubnetID     *uint     `gorm:"index"`
	UserID       *uint     `gorm:"index"`
	LeaseSeconds int
	LeaseExpires *time.Time
	Comment      string `gorm:"type:varchar(255)"`
}

type Node struct {
	gorm.Model
	Hostname        string `gorm:"type:varchar(255);uniqueIndex"`
	DomainID        uint   `gorm:"index"`
	BootInterfaceID *uint
}

type Interface struct {
	gorm.Model
	NodeID *uint  `gorm:"index"`
	Name   string `gorm:"type:varchar(64)"`
	MAC    string `gorm:"column:mac;type:varchar(17);index"`
}

// InterfaceIP — link row Interface <-> StaticIPAddress. Несколько адресов на
// интерфейс; DISCOVERED-адрес может быть виден с нескольких интерфейсов.
type InterfaceIP struct {
	gorm.Model
	InterfaceID       uint `gorm:"index:idx_iface_ip,priority:1"`
	StaticIPAddressID uint `gorm:"index:idx_iface_ip,priority:2"`
}
