package api

import (
	"context"

	"golang.org/x/sync/errgroup"

	"crm-cli/internal/model"
	"crm-cli/internal/statusutil"
)

// Overview fetches customers, offers and tasks concurrently. The first failure
// cancels the rest and no partial data is returned.
func (c *Client) Overview(ctx context.Context) (model.Overview, error) {
	var (
		customers []model.Customer
		offers    []model.Offer
		tasks     []model.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = c.ListCustomers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		offers, err = c.ListOffers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = c.ListTasks(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Overview{}, err
	}
	return model.Overview{Customers: customers, Offers: offers, Tasks: tasks}, nil
}

// Counts are the dashboard figures.
type Counts struct {
	Customers    int `json:"customers"`
	ActiveOffers int `json:"activeOffers"`
	OpenTasks    int `json:"openTasks"`
}

func CountOverview(ov model.Overview) Counts {
	out := Counts{Customers: len(ov.Customers)}
	for _, o := range ov.Offers {
		if statusutil.IsActiveOffer(o.Status) {
			out.ActiveOffers++
		}
	}
	for _, t := range ov.Tasks {
		if !statusutil.IsEndState(t.Status) {
			out.OpenTasks++
		}
	}
	return out
}
