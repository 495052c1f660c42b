package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/tripcarbon/pkg/core"
	"github.com/NERVsystems/tripcarbon/pkg/trip"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewAPI(nil, nil, discardLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, out interface{}) int {
	t.Helper()
	req, _ := http.NewRequest(method, url, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestAPI_Emissions(t *testing.T) {
	srv := newTestAPI(t)

	var out struct {
		DistanceKm float64 `json:"distance_km"`
		Emissions  struct {
			TotalKg     float64            `json:"total_co2e_kg"`
			PerModeKg   map[string]float64 `json:"transport_emissions"`
			PerPersonKg float64            `json:"per_person_emissions"`
		} `json:"emissions"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+APIPrefix+"/emissions",
		`{"origin":"Delhi","destination":"Mumbai","outbound_date":"2026-11-02","modes":["Flight","Train"],"travelers":2,"nights":1}`, &out)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if out.DistanceKm < 1145 || out.DistanceKm > 1155 {
		t.Errorf("distance %.1f outside 1145-1155", out.DistanceKm)
	}
	if len(out.Emissions.PerModeKg) != 2 || out.Emissions.TotalKg <= 0 {
		t.Errorf("unexpected emissions %+v", out.Emissions)
	}
	if diff := out.Emissions.TotalKg/2 - out.Emissions.PerPersonKg; diff > 0.01 || diff < -0.01 {
		t.Errorf("per person %.2f inconsistent with total %.2f", out.Emissions.PerPersonKg, out.Emissions.TotalKg)
	}
}

func TestAPI_ValidationErrors(t *testing.T) {
	srv := newTestAPI(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   core.ErrorCode
	}{
		{"not json", "/emissions", `[1,2`, http.StatusBadRequest, core.ErrInvalidInput},
		{"same origin", "/emissions", `{"origin":"Delhi","destination":"Delhi","outbound_date":"2026-11-02","modes":["Train"]}`, http.StatusBadRequest, core.ErrInvalidTrip},
		{"unknown city", "/plan", `{"origin":"Atlantis","destination":"Delhi","outbound_date":"2026-11-02","modes":["Train"]}`, http.StatusNotFound, core.ErrUnknownLocation},
		{"negative baseline", "/alternatives", `{"origin":"Delhi","destination":"Mumbai","baseline_emissions_kg":-5}`, http.StatusBadRequest, core.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e core.MCPError
			status := doJSON(t, http.MethodPost, srv.URL+APIPrefix+tt.path, tt.body, &e)
			if status != tt.status {
				t.Errorf("expected %d, got %d (%+v)", tt.status, status, e)
			}
			if e.Code != string(tt.code) {
				t.Errorf("expected code %s, got %s", tt.code, e.Code)
			}
		})
	}
}

func TestAPI_AlternativesAndPlan(t *testing.T) {
	srv := newTestAPI(t)

	var alts struct {
		Options []struct {
			Mode        string  `json:"mode"`
			EmissionsKg float64 `json:"emissions_kg"`
		} `json:"alternatives"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+APIPrefix+"/alternatives",
		`{"origin":"Delhi","destination":"Mumbai","baseline_emissions_kg":912}`, &alts)
	if status != http.StatusOK || len(alts.Options) == 0 {
		t.Fatalf("expected alternatives, got %d %+v", status, alts)
	}
	for i := 1; i < len(alts.Options); i++ {
		if alts.Options[i].EmissionsKg < alts.Options[i-1].EmissionsKg {
			t.Errorf("alternatives not ordered by emissions at %d", i)
		}
	}

	var plan trip.Plan
	status = doJSON(t, http.MethodPost, srv.URL+APIPrefix+"/plan",
		`{"origin":"Salem","destination":"Chennai","outbound_date":"2026-11-02","modes":["Car"],"nights":2}`, &plan)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if plan.ID == "" || plan.Emissions.TotalKg <= 0 || plan.Alternatives == nil {
		t.Errorf("incomplete plan %+v", plan)
	}
}

func TestAPI_LocationsAndRoutes(t *testing.T) {
	srv := newTestAPI(t)

	var suggest struct {
		Suggestions []string `json:"suggestions"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/locations/suggest?q=mum", "", &suggest); status != http.StatusOK {
		t.Fatalf("suggest returned %d", status)
	}
	if len(suggest.Suggestions) == 0 || suggest.Suggestions[0] != "Mumbai" {
		t.Errorf("expected Mumbai, got %v", suggest.Suggestions)
	}

	var dist struct {
		DistanceKm float64 `json:"distance_km"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/locations/distance?from=Salem&to=Chennai", "", &dist); status != http.StatusOK {
		t.Fatalf("distance returned %d", status)
	}
	if dist.DistanceKm < 275 || dist.DistanceKm > 285 {
		t.Errorf("distance %.1f outside 275-285", dist.DistanceKm)
	}

	var missing core.MCPError
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/locations/distance?from=Salem&to=Narnia", "", &missing); status != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown location, got %d", status)
	}

	var popular struct {
		Routes []json.RawMessage `json:"routes"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/routes/popular", "", &popular); status != http.StatusOK || len(popular.Routes) == 0 {
		t.Errorf("popular routes returned %d with %d routes", status, len(popular.Routes))
	}

	var variants struct {
		Variants []json.RawMessage `json:"variants"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/routes/variants?origin=Salem&destination=Chennai&num_variants=2", "", &variants); status != http.StatusOK {
		t.Fatalf("variants returned %d", status)
	}
	if len(variants.Variants) == 0 || len(variants.Variants) > 2 {
		t.Errorf("expected 1-2 variants, got %d", len(variants.Variants))
	}

	var bad core.MCPError
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/routes/variants?origin=Salem&destination=Chennai&num_variants=many", "", &bad); status != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric parameter, got %d", status)
	}

	var factors struct {
		Factors []json.RawMessage `json:"factors"`
	}
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/factors", "", &factors); status != http.StatusOK || len(factors.Factors) != 5 {
		t.Errorf("factors returned %d with %d rows", status, len(factors.Factors))
	}

	var nf core.MCPError
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/nothing", "", &nf); status != http.StatusNotFound || nf.Code != string(core.ErrNotFound) {
		t.Errorf("unknown route returned %d %+v", status, nf)
	}
}

func TestAPI_MountedBehindAuth(t *testing.T) {
	config := DefaultHTTPTransportConfig()
	config.AuthType = core.AuthJWT
	config.AuthToken = testToken
	transport := NewHTTPTransport(mcpserver.NewMCPServer("test-server", "1.0.0"), config, discardLogger())
	transport.MountAPI(NewAPI(nil, nil, discardLogger()).Handler())
	srv := httptest.NewServer(transport.Handler())
	defer srv.Close()

	var e core.MCPError
	if status := doJSON(t, http.MethodGet, srv.URL+APIPrefix+"/routes/popular", "", &e); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", status)
	}
	if e.Code != string(core.ErrUnauthorized) {
		t.Errorf("expected UNAUTHORIZED, got %s", e.Code)
	}

	token, _ := core.IssueJWT("tester", testToken, time.Minute)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+APIPrefix+"/routes/popular", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with a valid token, got %d", resp.StatusCode)
	}
}
