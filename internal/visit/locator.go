package visit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/sync/singleflight"

	"github.com/hackgods/evv-verification/internal/geo"
)

// Resolver turns a patient into the reference point used as geofence centre.
// Production deployments plug in a geocoder for the patient's verified address.
type Resolver interface {
	Resolve(ctx context.Context, patientID string) (geo.Point, error)
}

// SyntheticResolver fabricates a point near a baseline. It stands in for
// geocoding while the system has no verified patient addresses.
type SyntheticResolver struct {
	base   geo.Point
	spread float64

	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewSyntheticResolver offsets each axis by a uniform value in [-spread/2, spread/2].
func NewSyntheticResolver(base geo.Point, spread float64, seed uint64) *SyntheticResolver {
	return &SyntheticResolver{
		base:   base,
		spread: spread,
		faker:  gofakeit.New(seed),
	}
}

func (r *SyntheticResolver) Resolve(_ context.Context, _ string) (geo.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	half := r.spread / 2
	return geo.Point{
		Lat: r.base.Lat + r.faker.Float64Range(-half, half),
		Lng: r.base.Lng + r.faker.Float64Range(-half, half),
	}, nil
}

// StaticResolver returns fixed points per patient, falling back to a default.
type StaticResolver struct {
	Points   map[string]geo.Point
	Fallback *geo.Point
}

func (r StaticResolver) Resolve(_ context.Context, patientID string) (geo.Point, error) {
	if p, ok := r.Points[patientID]; ok {
		return p, nil
	}
	if r.Fallback != nil {
		return *r.Fallback, nil
	}
	return geo.Point{}, fmt.Errorf("%w: %s", ErrLocationNotFound, patientID)
}

// Directory memoizes patient locations. The first stored location for a
// patient wins and is never replaced.
type Directory struct {
	repo     Repository
	resolver Resolver
	group    singleflight.Group
}

const resolveTimeout = 10 * time.Second

func NewDirectory(repo Repository, resolver Resolver) *Directory {
	return &Directory{repo: repo, resolver: resolver}
}

func (d *Directory) LocationFor(ctx context.Context, patientID string) (*PatientLocation, error) {
	loc, err := d.repo.GetLocation(ctx, patientID)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, ErrLocationNotFound) {
		return nil, fmt.Errorf("load patient location: %w", err)
	}

	// The flight outlives any single caller so one cancelled request cannot
	// fail the others waiting on the same patient.
	detached := context.WithoutCancel(ctx)
	ch := d.group.DoChan(patientID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(detached, resolveTimeout)
		defer cancel()

		p, err := d.resolver.Resolve(flightCtx, patientID)
		if err != nil {
			return nil, fmt.Errorf("resolve patient location: %w", err)
		}
		if !geo.Valid(p) {
			return nil, fmt.Errorf("resolve patient location: %w: resolver returned %v", ErrInvalidInput, p)
		}
		return d.repo.InsertLocationIfAbsent(flightCtx, PatientLocation{
			PatientID: patientID,
			Lat:       p.Lat,
			Lng:       p.Lng,
		})
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	stored := *res.Val.(*PatientLocation)
	return &stored, nil
}
