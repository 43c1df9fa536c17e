package dnssync

import (
	"testing"

	"github.com/SpaghettiHub/maas-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.Node{},
		&models.Interface{},
		&models.StaticIPAddress{},
		&models.Domain{},
		&models.DNSResource{},
		&models.DNSResourceIP{},
		&models.DNSPublication{},
	))
	return gdb
}

type fixture struct {
	gdb    *gorm.DB
	repo   *Repo
	svc    *Service
	domain *models.Domain
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	domain, err := repo.EnsureDefaultDomain("maas")
	require.NoError(t, err)
	return &fixture{gdb: gdb, repo: repo, svc: NewService(repo), domain: domain}
}

func (f *fixture) makeNodeWithBootInterface(t *testing.T, hostname, ifaceName string) (*models.Node, *models.Interface) {
	t.Helper()
	n := &models.Node{Hostname: hostname, DomainID: f.domain.ID}
	require.NoError(t, f.gdb.Create(n).Error)
	iface := &models.Interface{NodeID: &n.ID, Name: ifaceName, MAC: "aa:bb:cc:dd:ee:01"}
	require.NoError(t, f.gdb.Create(iface).Error)
	n.BootInterfaceID = &iface.ID
	require.NoError(t, f.gdb.Save(n).Error)
	return n, iface
}

func (f *fixture) makeAddress(t *testing.T, ip string, at models.AllocType) *models.StaticIPAddress {
	t.Helper()
	sip := &models.StaticIPAddress{IP: ip, AllocType: at}
	require.NoError(t, f.gdb.Create(sip).Error)
	return sip
}

func (f *fixture) publications(t *testing.T) []models.DNSPublication {
	t.Helper()
	pubs, err := f.repo.PublicationsSince(0)
	require.NoError(t, err)
	return pubs
}

func TestSanitizeLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Web-Server", "web-server"},
		{"my_host 1", "my-host-1"},
		{"  Host.Local  ", "hostlocal"},
		{"--trimmed--", "trimmed"},
		{"точка", ""},
		{"UPPER", "upper"},
		{"a b_c-d", "a-b-c-d"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SanitizeLabel(c.in), "input %q", c.in)
	}
}

func TestOnLinkBootInterfaceUsesNodeHostname(t *testing.T) {
	f := newFixture(t)
	node, iface := f.makeNodeWithBootInterface(t, "Web-Server", "eth0")
	sip := f.makeAddress(t, "10.0.0.5", models.AllocSticky)
	_ = node

	require.NoError(t, f.svc.OnLink(iface, sip))

	res, created, err := f.repo.GetOrCreateResource("web-server", f.domain.ID, true)
	require.NoError(t, err)
	assert.False(t, created, "resource was created by OnLink")
	n, err := f.repo.LinkCount(res.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	pubs := f.publications(t)
	require.Len(t, pubs, 1)
	assert.Equal(t, models.DNSActionInsert, pubs[0].Action)
	assert.Equal(t, "web-server", pubs[0].Label)
	assert.Equal(t, "A", pubs[0].Rtype)
	assert.Equal(t, "maas", pubs[0].Zone)
	assert.Equal(t, models.DefaultDNSTTL, pubs[0].TTL)
	assert.Contains(t, pubs[0].Source, "10.0.0.5")
}

func TestOnLinkSecondaryInterfaceLabel(t *testing.T) {
	f := newFixture(t)
	node, _ := f.makeNodeWithBootInterface(t, "host1", "eth0")
	second := &models.Interface{NodeID: &node.ID, Name: "eth1", MAC: "aa:bb:cc:dd:ee:02"}
	require.NoError(t, f.gdb.Create(second).Error)
	sip := f.makeAddress(t, "fd00::5", models.AllocSticky)

	require.NoError(t, f.svc.OnLink(second, sip))

	pubs := f.publications(t)
	require.Len(t, pubs, 1)
	assert.Equal(t, "eth1.host1", pubs[0].Label)
	assert.Equal(t, "AAAA", pubs[0].Rtype)
}

func TestOnLinkWithoutNodeIsNoop(t *testing.T) {
	f := newFixture(t)
	iface := &models.Interface{Name: "eth0"}
	require.NoError(t, f.gdb.Create(iface).Error)
	sip := f.makeAddress(t, "10.0.0.5", models.AllocSticky)

	require.NoError(t, f.svc.OnLink(iface, sip))
	assert.Empty(t, f.publications(t))
}

func TestOnUnlinkReleasesOnlyDiscovered(t *testing.T) {
	f := newFixture(t)
	_, iface := f.makeNodeWithBootInterface(t, "host1", "eth0")

	sticky := f.makeAddress(t, "10.0.0.5", models.AllocSticky)
	require.NoError(t, f.svc.OnLink(iface, sticky))

	// вручную назначенный адрес из DNS при анлинке не выпадает
	require.NoError(t, f.svc.OnUnlink(iface, sticky))
	res, _, err := f.repo.GetOrCreateResource("host1", f.domain.ID, true)
	require.NoError(t, err)
	n, err := f.repo.LinkCount(res.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	discovered := f.makeAddress(t, "10.0.0.6", models.AllocDiscovered)
	require.NoError(t, f.svc.OnLink(iface, discovered))
	require.NoError(t, f.svc.OnUnlink(iface, discovered))

	n, err = f.repo.LinkCount(res.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "discovered link removed, sticky stays")
}

func TestReleaseDeletesEmptyDynamicResource(t *testing.T) {
	f := newFixture(t)
	sip := f.makeAddress(t, "10.0.0.7", models.AllocDiscovered)

	require.NoError(t, f.svc.UpdateDynamicHostname(sip, "leased-host"))
	require.NoError(t, f.svc.ReleaseDynamicHostname(sip))

	pubs := f.publications(t)
	require.Len(t, pubs, 2)
	assert.Equal(t, models.DNSActionInsert, pubs[0].Action)
	assert.Equal(t, models.DNSActionDelete, pubs[1].Action, "last link gone, dynamic resource deleted")

	var count int64
	require.NoError(t, f.gdb.Model(&models.DNSResource{}).Where("name = ?", "leased-host").Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestUpdateDynamicHostnameSequence(t *testing.T) {
	f := newFixture(t)
	sip := f.makeAddress(t, "10.0.0.8", models.AllocDiscovered)

	// два hostname подряд — живым остаётся один ресурс, старый удалён
	require.NoError(t, f.svc.UpdateDynamicHostname(sip, "first-name"))
	require.NoError(t, f.svc.UpdateDynamicHostname(sip, "second-name"))

	var live []models.DNSResource
	require.NoError(t, f.gdb.Find(&live).Error)
	require.Len(t, live, 1)
	assert.Equal(t, "second-name", live[0].Name)

	pubs := f.publications(t)
	require.Len(t, pubs, 3)
	assert.Equal(t, models.DNSActionInsert, pubs[0].Action) // first-name
	assert.Equal(t, models.DNSActionDelete, pubs[1].Action) // first-name released
	assert.Equal(t, models.DNSActionInsert, pubs[2].Action) // second-name
	assert.Equal(t, "second-name", pubs[2].Label)
}

func TestUpdateDynamicHostnameKeepsOperatorResource(t *testing.T) {
	f := newFixture(t)
	sip := f.makeAddress(t, "10.0.0.9", models.AllocDiscovered)

	// ресурс завёл оператор: не динамический
	operator := &models.DNSResource{Name: "pinned", DomainID: f.domain.ID, Dynamic: false}
	require.NoError(t, f.gdb.Create(operator).Error)

	require.NoError(t, f.svc.UpdateDynamicHostname(sip, "pinned"))
	n, err := f.repo.LinkCount(operator.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "observed hostname never hijacks an operator-owned record")
	assert.Empty(t, f.publications(t))
}

func TestUpdateDynamicHostnameRejectsUnsanitizable(t *testing.T) {
	f := newFixture(t)
	sip := f.makeAddress(t, "10.0.0.10", models.AllocDiscovered)
	err := f.svc.UpdateDynamicHostname(sip, "___")
	require.Error(t, err)
}

func TestTTLPrecedence(t *testing.T) {
	f := newFixture(t)
	domTTL := 120
	f.domain.TTL = &domTTL
	require.NoError(t, f.gdb.Save(f.domain).Error)

	_, iface := f.makeNodeWithBootInterface(t, "host1", "eth0")
	sip := f.makeAddress(t, "10.0.0.5", models.AllocSticky)
	require.NoError(t, f.svc.OnLink(iface, sip))

	pubs := f.publications(t)
	require.Len(t, pubs, 1)
	assert.Equal(t, 120, pubs[0].TTL, "domain ttl overrides the default")
}
