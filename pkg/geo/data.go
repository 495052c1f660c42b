package geo

// curatedLocations is the built-in dataset. The first fifteen entries are the
// cities offered to travellers; the rest are towns used as curated waypoints.
var curatedLocations = []Location{
	{Name: "Salem", Region: "Tamil Nadu", Latitude: 11.6643, Longitude: 78.1460},
	{Name: "Chennai", Region: "Tamil Nadu", Latitude: 13.0827, Longitude: 80.2707},
	{Name: "Delhi", Region: "Delhi", Latitude: 28.7041, Longitude: 77.1025},
	{Name: "Mumbai", Region: "Maharashtra", Latitude: 19.0760, Longitude: 72.8777},
	{Name: "Bangalore", Region: "Karnataka", Latitude: 12.9716, Longitude: 77.5946},
	{Name: "Kolkata", Region: "West Bengal", Latitude: 22.5726, Longitude: 88.3639},
	{Name: "Hyderabad", Region: "Telangana", Latitude: 17.3850, Longitude: 78.4867},
	{Name: "Pune", Region: "Maharashtra", Latitude: 18.5204, Longitude: 73.8567},
	{Name: "Ahmedabad", Region: "Gujarat", Latitude: 23.0225, Longitude: 72.5714},
	{Name: "Jaipur", Region: "Rajasthan", Latitude: 26.9124, Longitude: 75.7873},
	{Name: "Kochi", Region: "Kerala", Latitude: 9.9312, Longitude: 76.2673},
	{Name: "Goa", Region: "Goa", Latitude: 15.2993, Longitude: 74.1240},
	{Name: "Agra", Region: "Uttar Pradesh", Latitude: 27.1767, Longitude: 78.0081},
	{Name: "Varanasi", Region: "Uttar Pradesh", Latitude: 25.3176, Longitude: 82.9739},
	{Name: "Udaipur", Region: "Rajasthan", Latitude: 24.5854, Longitude: 73.7125},

	{Name: "Coimbatore", Region: "Tamil Nadu", Latitude: 11.0168, Longitude: 76.9558},
	{Name: "Madurai", Region: "Tamil Nadu", Latitude: 9.9252, Longitude: 78.1198},
	{Name: "Vellore", Region: "Tamil Nadu", Latitude: 12.9165, Longitude: 79.1325},
	{Name: "Kanchipuram", Region: "Tamil Nadu", Latitude: 12.8342, Longitude: 79.7036},
	{Name: "Tiruvallur", Region: "Tamil Nadu", Latitude: 13.1231, Longitude: 79.9120},
	{Name: "Erode", Region: "Tamil Nadu", Latitude: 11.3410, Longitude: 77.7172},
	{Name: "Tiruppur", Region: "Tamil Nadu", Latitude: 11.1085, Longitude: 77.3411},
	{Name: "Tiruchirappalli", Region: "Tamil Nadu", Latitude: 10.7905, Longitude: 78.7047},
	{Name: "Ajmer", Region: "Rajasthan", Latitude: 26.4499, Longitude: 74.6399},
	{Name: "Vadodara", Region: "Gujarat", Latitude: 22.3072, Longitude: 73.1812},
}

var popularPairs = []Pair{
	{Origin: "Salem", Destination: "Chennai"},
	{Origin: "Delhi", Destination: "Mumbai"},
	{Origin: "Bangalore", Destination: "Chennai"},
	{Origin: "Delhi", Destination: "Goa"},
	{Origin: "Mumbai", Destination: "Pune"},
	{Origin: "Chennai", Destination: "Kochi"},
	{Origin: "Delhi", Destination: "Jaipur"},
	{Origin: "Mumbai", Destination: "Goa"},
	{Origin: "Bangalore", Destination: "Hyderabad"},
	{Origin: "Kolkata", Destination: "Delhi"},
}

// CuratedLocations returns a copy of the built-in dataset.
func CuratedLocations() []Location {
	out := make([]Location, len(curatedLocations))
	copy(out, curatedLocations)
	return out
}

// DefaultPopularPairs returns a copy of the built-in popular routes.
func DefaultPopularPairs() []Pair {
	out := make([]Pair, len(popularPairs))
	copy(out, popularPairs)
	return out
}
