// Package ipset implements interval-set arithmetic over IP ranges.
// Чистая математика интервалов: никакого I/O, IPv4 и IPv6 одинаково,
// адресное пространство v6 никогда не перечисляется поштучно.
package ipset

import (
	"fmt"
	"net/netip"
	"sort"
)

// Purpose tags for ranges in a utilization breakdown.
const (
	PurposeFree      = "free"
	PurposeReserved  = "reserved"
	PurposeDynamic   = "dynamic"
	PurposeAllocated = "allocated"
)

// Range — inclusive [Start, End] interval of addresses of one family.
type Range struct {
	Start   netip.Addr
	End     netip.Addr
	Purpose string
}

func (r Range) Contains(a netip.Addr) bool {
	return a.Compare(r.Start) >= 0 && a.Compare(r.End) <= 0
}

func (r Range) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return r.Start.String() + "-" + r.End.String()
}

// NumAddresses — размер интервала; для гигантских v6-интервалов
// насыщается в MaxUint64.
func (r Range) NumAddresses() uint64 {
	d, ok := distance(r.Start, r.End)
	if !ok {
		return ^uint64(0)
	}
	return d + 1
}

// New builds a validated range. Start and End must be the same family and
// ordered.
func New(start, end netip.Addr, purpose string) (Range, error) {
	if !start.IsValid() || !end.IsValid() {
		return Range{}, fmt.Errorf("invalid address in range [%s, %s]", start, end)
	}
	if start.Is4() != end.Is4() {
		return Range{}, fmt.Errorf("mixed address families in range [%s, %s]", start, end)
	}
	if start.Compare(end) > 0 {
		return Range{}, fmt.Errorf("range start %s after end %s", start, end)
	}
	return Range{Start: start, End: end, Purpose: purpose}, nil
}

// Single — интервал из одного адреса.
func Single(a netip.Addr, purpose string) Range {
	return Range{Start: a, End: a, Purpose: purpose}
}

// Parse builds a range from textual start/end addresses.
func Parse(start, end, purpose string) (Range, error) {
	s, err := netip.ParseAddr(start)
	if err != nil {
		return Range{}, fmt.Errorf("bad start ip %q: %w", start, err)
	}
	e, err := netip.ParseAddr(end)
	if err != nil {
		return Range{}, fmt.Errorf("bad end ip %q: %w", end, err)
	}
	return New(s.Unmap(), e.Unmap(), purpose)
}

// Merge normalizes a set: sort by start, merge overlapping and adjacent
// intervals. Пересечение интервалов с разными purpose схлопывается, purpose
// берётся у более раннего — для вычисления дыр он не важен.
func Merge(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	rs := make([]Range, len(ranges))
	copy(rs, ranges)
	sort.Slice(rs, func(i, j int) bool {
		if c := rs[i].Start.Compare(rs[j].Start); c != 0 {
			return c < 0
		}
		return rs[i].End.Compare(rs[j].End) < 0
	})
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if touches(*last, r) {
			if r.End.Compare(last.End) > 0 {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// touches — r overlaps last, or starts right after it.
func touches(last, r Range) bool {
	if r.Start.Compare(last.End) <= 0 {
		return true
	}
	return last.End.Next().IsValid() && r.Start == last.End.Next()
}

// UnusedWithin computes the complementary free intervals of used inside
// [first, last], ascending. used может содержать пересечения и куски,
// торчащие за границы — всё нормализуется и подрезается.
func UnusedWithin(first, last netip.Addr, used []Range) []Range {
	clipped := make([]Range, 0, len(used))
	for _, r := range used {
		if r.End.Compare(first) < 0 || r.Start.Compare(last) > 0 {
			continue
		}
		if r.Start.Compare(first) < 0 {
			r.Start = first
		}
		if r.End.Compare(last) > 0 {
			r.End = last
		}
		clipped = append(clipped, r)
	}
	var out []Range
	cursor := first
	for _, r := range Merge(clipped) {
		if cursor.Compare(r.Start) < 0 {
			out = append(out, Range{Start: cursor, End: r.Start.Prev(), Purpose: PurposeFree})
		}
		cursor = r.End.Next()
		if !cursor.IsValid() {
			return out // used upper bound is the top of the address space
		}
	}
	if cursor.Compare(last) <= 0 {
		out = append(out, Range{Start: cursor, End: last, Purpose: PurposeFree})
	}
	return out
}

// Contains reports whether any range of the set covers a.
func Contains(ranges []Range, a netip.Addr) bool {
	for _, r := range ranges {
		if r.Contains(a) {
			return true
		}
	}
	return false
}

// purposeRank — приоритет при пересечении кусков разных типов.
func purposeRank(p string) int {
	switch p {
	case PurposeAllocated:
		return 3
	case PurposeDynamic:
		return 2
	case PurposeReserved:
		return 1
	default:
		return 0
	}
}

// Breakdown tags every sub-interval of [first, last] with the
// highest-ranked purpose covering it, FREE for the gaps. Adjacent
// elementary intervals of equal purpose are coalesced back.
func Breakdown(first, last netip.Addr, used []Range) []Range {
	clipped := make([]Range, 0, len(used))
	for _, r := range used {
		if r.End.Compare(first) < 0 || r.Start.Compare(last) > 0 {
			continue
		}
		if r.Start.Compare(first) < 0 {
			r.Start = first
		}
		if r.End.Compare(last) > 0 {
			r.End = last
		}
		clipped = append(clipped, r)
	}

	// Elementary boundaries: каждый Start и адрес за каждым End.
	bounds := []netip.Addr{first}
	for _, r := range clipped {
		if r.Start.Compare(first) > 0 {
			bounds = append(bounds, r.Start)
		}
		if next := r.End.Next(); next.IsValid() && next.Compare(last) <= 0 {
			bounds = append(bounds, next)
		}
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Compare(bounds[j]) < 0 })
	bounds = dedupeAddrs(bounds)

	var out []Range
	for i, start := range bounds {
		end := last
		if i+1 < len(bounds) {
			end = bounds[i+1].Prev()
		}
		purpose := PurposeFree
		for _, r := range clipped {
			if r.Contains(start) && purposeRank(r.Purpose) > purposeRank(purpose) {
				purpose = r.Purpose
			}
		}
		if n := len(out); n > 0 && out[n-1].Purpose == purpose && out[n-1].End.Next() == start {
			out[n-1].End = end
			continue
		}
		out = append(out, Range{Start: start, End: end, Purpose: purpose})
	}
	return out
}

func dedupeAddrs(as []netip.Addr) []netip.Addr {
	out := as[:0]
	for i, a := range as {
		if i == 0 || a != as[i-1] {
			out = append(out, a)
		}
	}
	return out
}

// NetworkSpan returns the first and last address of a prefix (network and,
// for IPv4, broadcast address included).
func NetworkSpan(p netip.Prefix) (first, last netip.Addr) {
	p = p.Masked()
	first = p.Addr()
	raw := first.AsSlice()
	for b := p.Bits(); b < len(raw)*8; b++ {
		raw[b/8] |= 1 << (7 - b%8)
	}
	last, _ = netip.AddrFromSlice(raw)
	return first, last
}

// distance — End-Start как uint64; ok=false при переполнении (только
// у громадных v6-интервалов).
func distance(start, end netip.Addr) (uint64, bool) {
	s, e := start.As16(), end.As16()
	var borrow uint16
	var diff [16]byte
	for i := 15; i >= 0; i-- {
		d := int16(e[i]) - int16(s[i]) - int16(borrow)
		if d < 0 {
			d += 256
			borrow = 1
		} else {
			borrow = 0
		}
		diff[i] = byte(d)
	}
	for i := 0; i < 8; i++ {
		if diff[i] != 0 {
			return 0, false
		}
	}
	var out uint64
	for i := 8; i < 16; i++ {
		out = out<<8 | uint64(diff[i])
	}
	return out, true
}

// AddOffset — addr+n; используется аллокатором чтобы пройти несколько
// адресов от начала свободного интервала.
func AddOffset(a netip.Addr, n uint64) netip.Addr {
	raw := a.As16()
	for i := 15; i >= 8 && n > 0; i-- {
		sum := uint64(raw[i]) + (n & 0xff)
		raw[i] = byte(sum)
		n = n>>8 + sum>>8
	}
	out := netip.AddrFrom16(raw)
	if a.Is4() {
		return out.Unmap()
	}
	return out
}
