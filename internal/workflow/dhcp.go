package workflow

import "sort"

// ConfigureDHCPJob — имя задания пересборки конфигурации DHCP.
const ConfigureDHCPJob = "configure-dhcp"

// ConfigureDHCPParam — объединение всего, что затронули мутации окна.
type ConfigureDHCPParam struct {
	SubnetIDs   []uint `json:"subnet_ids,omitempty"`
	StaticIPIDs []uint `json:"static_ip_ids,omitempty"`
}

// MergeConfigureDHCP — ассоциативное слияние двух параметров: union id-шников.
func MergeConfigureDHCP(old, new any) any {
	a, _ := old.(ConfigureDHCPParam)
	b, _ := new.(ConfigureDHCPParam)
	return ConfigureDHCPParam{
		SubnetIDs:   unionIDs(a.SubnetIDs, b.SubnetIDs),
		StaticIPIDs: unionIDs(a.StaticIPIDs, b.StaticIPIDs),
	}
}

func unionIDs(a, b []uint) []uint {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(a)+len(b))
	out := make([]uint, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
