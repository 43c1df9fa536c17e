package ipset

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return a
}

func rng(t *testing.T, start, end string) Range {
	t.Helper()
	r, err := Parse(start, end, "")
	require.NoError(t, err)
	return r
}

func TestNewValidation(t *testing.T) {
	_, err := New(addr(t, "10.0.0.5"), addr(t, "10.0.0.1"), "")
	assert.Error(t, err, "start after end")

	_, err = New(addr(t, "10.0.0.1"), addr(t, "fd00::1"), "")
	assert.Error(t, err, "mixed families")

	r, err := New(addr(t, "10.0.0.1"), addr(t, "10.0.0.1"), "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.NumAddresses())
	assert.Equal(t, "10.0.0.1", r.String())
}

func TestMergeOverlappingAndAdjacent(t *testing.T) {
	got := Merge([]Range{
		rng(t, "10.0.0.20", "10.0.0.30"),
		rng(t, "10.0.0.1", "10.0.0.10"),
		rng(t, "10.0.0.5", "10.0.0.15"),  // overlaps the first
		rng(t, "10.0.0.16", "10.0.0.18"), // adjacent to the merged one
	})
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1-10.0.0.18", got[0].String())
	assert.Equal(t, "10.0.0.20-10.0.0.30", got[1].String())
}

func TestUnusedWithinComplement(t *testing.T) {
	first, last := NetworkSpan(netip.MustParsePrefix("10.0.0.0/24"))
	assert.Equal(t, "10.0.0.0", first.String())
	assert.Equal(t, "10.0.0.255", last.String())

	free := UnusedWithin(first, last, []Range{
		rng(t, "10.0.0.50", "10.0.0.100"),
		rng(t, "10.0.0.0", "10.0.0.0"),
		rng(t, "10.0.0.255", "10.0.0.255"),
	})
	require.Len(t, free, 2)
	assert.Equal(t, "10.0.0.1-10.0.0.49", free[0].String())
	assert.Equal(t, "10.0.0.101-10.0.0.254", free[1].String())

	// free ∪ used покрывает весь интервал без дыр
	var total uint64
	for _, r := range free {
		total += r.NumAddresses()
	}
	assert.Equal(t, uint64(256-51-2), total)
}

func TestUnusedWithinClipsOutOfBounds(t *testing.T) {
	first, last := NetworkSpan(netip.MustParsePrefix("10.0.0.0/24"))
	free := UnusedWithin(first, last, []Range{
		rng(t, "9.255.255.0", "10.0.0.10"), // торчит слева
		rng(t, "10.0.0.200", "10.0.1.50"),  // торчит справа
		rng(t, "192.168.0.0", "192.168.0.255"),
	})
	require.Len(t, free, 1)
	assert.Equal(t, "10.0.0.11-10.0.0.199", free[0].String())
}

func TestUnusedWithinEmptyUsed(t *testing.T) {
	first, last := NetworkSpan(netip.MustParsePrefix("192.168.1.0/30"))
	free := UnusedWithin(first, last, nil)
	require.Len(t, free, 1)
	assert.Equal(t, "192.168.1.0-192.168.1.3", free[0].String())
}

func TestUnusedWithinFullyUsed(t *testing.T) {
	first, last := NetworkSpan(netip.MustParsePrefix("10.0.0.0/24"))
	free := UnusedWithin(first, last, []Range{rng(t, "10.0.0.0", "10.0.0.255")})
	assert.Empty(t, free)
}

func TestIPv6IntervalsNoEnumeration(t *testing.T) {
	// /64 — перечислить нельзя, интервальная арифметика обязана справляться
	first, last := NetworkSpan(netip.MustParsePrefix("fd00::/64"))
	assert.Equal(t, "fd00::", first.String())
	assert.Equal(t, "fd00::ffff:ffff:ffff:ffff", last.String())

	free := UnusedWithin(first, last, []Range{
		rng(t, "fd00::1", "fd00::ffff:ffff"),
	})
	require.Len(t, free, 2)
	assert.Equal(t, "fd00::", free[0].String())
	assert.Equal(t, "fd00::1:0:0-fd00::ffff:ffff:ffff:ffff", free[1].String())

	huge := rng(t, "fd00::", "fd00::ffff:ffff:ffff:ffff")
	assert.Equal(t, ^uint64(0), huge.NumAddresses(), "saturates instead of overflowing")
}

func TestBreakdownPriorities(t *testing.T) {
	first, last := NetworkSpan(netip.MustParsePrefix("10.0.0.0/28"))
	got := Breakdown(first, last, []Range{
		{Start: addr(t, "10.0.0.2"), End: addr(t, "10.0.0.8"), Purpose: PurposeReserved},
		{Start: addr(t, "10.0.0.5"), End: addr(t, "10.0.0.5"), Purpose: PurposeAllocated},
	})
	// free | reserved | allocated wins inside reserved | reserved | free
	require.Len(t, got, 5)
	assert.Equal(t, PurposeFree, got[0].Purpose)
	assert.Equal(t, "10.0.0.0-10.0.0.1", got[0].String())
	assert.Equal(t, PurposeReserved, got[1].Purpose)
	assert.Equal(t, "10.0.0.2-10.0.0.4", got[1].String())
	assert.Equal(t, PurposeAllocated, got[2].Purpose)
	assert.Equal(t, "10.0.0.5", got[2].String())
	assert.Equal(t, PurposeReserved, got[3].Purpose)
	assert.Equal(t, "10.0.0.6-10.0.0.8", got[3].String())
	assert.Equal(t, PurposeFree, got[4].Purpose)
	assert.Equal(t, "10.0.0.9-10.0.0.15", got[4].String())
}

func TestBreakdownCoalescesEqualPurpose(t *testing.T) {
	first, last := NetworkSpan(netip.MustParsePrefix("10.0.0.0/28"))
	got := Breakdown(first, last, []Range{
		{Start: addr(t, "10.0.0.1"), End: addr(t, "10.0.0.3"), Purpose: PurposeDynamic},
		{Start: addr(t, "10.0.0.4"), End: addr(t, "10.0.0.6"), Purpose: PurposeDynamic},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.1-10.0.0.6", got[1].String())
	assert.Equal(t, PurposeDynamic, got[1].Purpose)
}

func TestContains(t *testing.T) {
	set := []Range{rng(t, "10.0.0.1", "10.0.0.10"), rng(t, "10.0.0.20", "10.0.0.30")}
	assert.True(t, Contains(set, addr(t, "10.0.0.10")))
	assert.True(t, Contains(set, addr(t, "10.0.0.20")))
	assert.False(t, Contains(set, addr(t, "10.0.0.15")))
}

func TestAddOffset(t *testing.T) {
	assert.Equal(t, "10.0.0.5", AddOffset(addr(t, "10.0.0.0"), 5).String())
	assert.Equal(t, "10.0.1.4", AddOffset(addr(t, "10.0.0.255"), 5).String())
	assert.Equal(t, "fd00::1:0", AddOffset(addr(t, "fd00::ffff"), 1).String())
	a := AddOffset(addr(t, "10.0.0.1"), 0)
	assert.True(t, a.Is4())
}

func TestDistanceSymmetryWithNumAddresses(t *testing.T) {
	r := rng(t, "10.0.0.50", "10.0.0.100")
	assert.Equal(t, uint64(51), r.NumAddresses())
	v6 := rng(t, "fd00::1", "fd00::ffff:ffff")
	assert.Equal(t, uint64(0xffffffff), v6.NumAddresses())
}
