package models

// Link modes derived for an interface/address pair.
const (
	LinkModeAuto   = "auto"
	LinkModeStatic = "static"
	LinkModeDHCP   = "dhcp"
	LinkModeLinkUp = "link_up"
)

// LinkModeFor — total mapping alloc-type × has-address → link mode.
// AUTO без выданного адреса это "auto" (адрес появится при деплое),
// всё остальное без адреса — "link_up".
func LinkModeFor(t AllocType, hasIP bool) string {
	switch t {
	case AllocAuto:
		return LinkModeAuto
	case AllocDHCP:
		return LinkModeDHCP
	case AllocSticky, AllocUserReserved:
		if hasIP {
			return LinkModeStatic
		}
		return LinkModeLinkUp
	case AllocDiscovered:
		return LinkModeDHCP
	default:
		return LinkModeLinkUp
	}
}
