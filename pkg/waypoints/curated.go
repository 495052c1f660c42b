package waypoints

type pairKey struct {
	origin, destination string
}

// Waypoints along well-known corridors, listed from origin to destination.
var curatedRoutes = map[pairKey][]string{
	{"Chennai", "Coimbatore"}: {"Vellore", "Salem", "Erode", "Tiruppur"},
	{"Coimbatore", "Chennai"}: {"Tiruppur", "Erode", "Salem", "Vellore"},
	{"Bangalore", "Chennai"}:  {"Vellore", "Kanchipuram", "Tiruvallur"},
	{"Chennai", "Bangalore"}:  {"Tiruvallur", "Kanchipuram", "Vellore"},
	{"Delhi", "Mumbai"}:       {"Jaipur", "Ajmer", "Ahmedabad", "Vadodara"},
	{"Mumbai", "Delhi"}:       {"Vadodara", "Ahmedabad", "Ajmer", "Jaipur"},
	{"Chennai", "Madurai"}:    {"Vellore", "Salem", "Tiruchirappalli"},
	{"Madurai", "Chennai"}:    {"Tiruchirappalli", "Salem", "Vellore"},
	{"Salem", "Coimbatore"}:   {"Erode", "Tiruppur"},
	{"Coimbatore", "Salem"}:   {"Tiruppur", "Erode"},
}

type shortcut struct {
	id        string
	waypoints []string
}

var curatedShortcuts = map[pairKey][]shortcut{
	{"Chennai", "Coimbatore"}: {
		{id: "shortcut_via_salem", waypoints: []string{"Salem"}},
		{id: "scenic_via_vellore", waypoints: []string{"Vellore", "Salem"}},
	},
	{"Coimbatore", "Chennai"}: {
		{id: "shortcut_via_salem", waypoints: []string{"Salem"}},
		{id: "scenic_via_vellore", waypoints: []string{"Salem", "Vellore"}},
	},
}
