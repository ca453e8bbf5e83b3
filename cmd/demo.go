package cmd

import (
	"fmt"

	"github.com/agentic-research/fleetcache/api"
	"github.com/agentic-research/fleetcache/internal/cloudapi"
	"github.com/agentic-research/fleetcache/internal/profile"
)

// demoClient seeds an in-memory control plane with a small tenancy so the
// whole pipeline can be tried without credentials: two compartments under
// the root, a few databases and hosts spread across the profile's regions.
func demoClient(p profile.Profile) *cloudapi.Fake {
	f := cloudapi.NewFake()
	f.SetPageSize(10)

	prod := api.Compartment{ID: "cmp.prod", Name: "prod", ParentID: p.TenancyID, State: api.StateActive}
	dev := api.Compartment{ID: "cmp.dev", Name: "dev", ParentID: p.TenancyID, State: api.StateActive}
	f.AddCompartment(prod)
	f.AddCompartment(dev)

	regions := p.Regions
	if len(regions) == 0 {
		regions = []string{p.HomeRegion}
	}
	for i, region := range regions {
		f.AddResource(api.Resource{
			ID:            fmt.Sprintf("db.prod.orders.%d", i),
			Name:          "orders-" + region,
			CompartmentID: prod.ID,
			Kind:          api.KindDatabase,
			Region:        region,
			Status:        "AVAILABLE",
			Attributes:    map[string]string{"edition": "enterprise"},
		})
		f.AddResource(api.Resource{
			ID:            fmt.Sprintf("host.prod.app.%d", i),
			Name:          "app-host-" + region,
			CompartmentID: prod.ID,
			Kind:          api.KindHost,
			Region:        region,
			Status:        "RUNNING",
			Attributes:    map[string]string{"cpus": "16"},
		})
	}
	f.AddResource(api.Resource{
		ID:            "db.dev.scratch",
		Name:          "scratch",
		CompartmentID: dev.ID,
		Kind:          api.KindDatabase,
		Region:        p.HomeRegion,
		Status:        "AVAILABLE",
		Attributes:    map[string]string{"edition": "standard"},
	})

	return f
}
