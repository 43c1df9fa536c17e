package ipam

import (
	"testing"

	"github.com/SpaghettiHub/maas-sub001/internal/db"
	"github.com/SpaghettiHub/maas-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB — свежая in-memory sqlite на каждый тест, схема как в проде.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.VLAN{},
		&models.Subnet{},
		&models.IPRange{},
		&models.StaticIPAddress{},
		&models.Node{},
		&models.Interface{},
		&models.InterfaceIP{},
	))
	require.NoError(t, db.MigrateStaticIPUniqueIndex(gdb))
	return gdb
}

func makeVLAN(t *testing.T, gdb *gorm.DB, dhcpOn bool) *models.VLAN {
	t.Helper()
	v := &models.VLAN{Name: "vlan", VID: 10, DHCPOn: dhcpOn}
	require.NoError(t, gdb.Create(v).Error)
	return v
}

func makeSubnet(t *testing.T, r *Repo, cidr, gateway string, vlanID uint) *models.Subnet {
	t.Helper()
	s := &models.Subnet{CIDR: cidr, GatewayIP: gateway, VLANID: vlanID, Managed: true}
	require.NoError(t, r.CreateSubnet(s))
	return s
}

func makeRange(t *testing.T, r *Repo, subnetID uint, kind, start, end string) *models.IPRange {
	t.Helper()
	ir := &models.IPRange{SubnetID: subnetID, Type: kind, StartIP: start, EndIP: end}
	require.NoError(t, r.CreateIPRange(ir))
	return ir
}

func makeNodeWithInterface(t *testing.T, gdb *gorm.DB, hostname, ifaceName, mac string) (*models.Node, *models.Interface) {
	t.Helper()
	n := &models.Node{Hostname: hostname}
	require.NoError(t, gdb.Create(n).Error)
	iface := &models.Interface{NodeID: &n.ID, Name: ifaceName, MAC: mac}
	require.NoError(t, gdb.Create(iface).Error)
	n.BootInterfaceID = &iface.ID
	require.NoError(t, gdb.Save(n).Error)
	return n, iface
}
