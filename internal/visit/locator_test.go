package visit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/evv-verification/internal/geo"
)

type countingResolver struct {
	calls atomic.Int32
	next  atomic.Int32
}

// Resolve hands out a different point on every call so that a second
// memoization would be visible.
func (r *countingResolver) Resolve(context.Context, string) (geo.Point, error) {
	r.calls.Add(1)
	n := r.next.Add(1)
	return geo.Point{Lat: float64(n) / 1000, Lng: 0}, nil
}

func TestSyntheticResolverStaysNearBaseline(t *testing.T) {
	base := geo.Point{Lat: 40.7128, Lng: -74.0060}
	r := NewSyntheticResolver(base, 0.01, 42)

	for i := 0; i < 200; i++ {
		p, err := r.Resolve(context.Background(), "p")
		require.NoError(t, err)
		assert.InDelta(t, base.Lat, p.Lat, 0.005)
		assert.InDelta(t, base.Lng, p.Lng, 0.005)
	}
}

func TestSyntheticResolverIsDeterministicPerSeed(t *testing.T) {
	base := geo.Point{Lat: 40.7128, Lng: -74.0060}
	a := NewSyntheticResolver(base, 0.01, 7)
	b := NewSyntheticResolver(base, 0.01, 7)

	for i := 0; i < 10; i++ {
		pa, _ := a.Resolve(context.Background(), "p")
		pb, _ := b.Resolve(context.Background(), "p")
		assert.Equal(t, pa, pb)
	}
}

func TestStaticResolver(t *testing.T) {
	fallback := geo.Point{Lat: 1, Lng: 1}
	r := StaticResolver{Points: map[string]geo.Point{"p-1": {Lat: 2, Lng: 2}}}

	p, err := r.Resolve(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Lat: 2, Lng: 2}, p)

	_, err = r.Resolve(context.Background(), "p-2")
	assert.ErrorIs(t, err, ErrLocationNotFound)

	r.Fallback = &fallback
	p, err = r.Resolve(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Equal(t, fallback, p)
}

func TestDirectoryMemoizesFirstLocation(t *testing.T) {
	repo := NewMemoryRepository()
	resolver := &countingResolver{}
	dir := NewDirectory(repo, resolver)
	ctx := context.Background()

	first, err := dir.LocationFor(ctx, "p-1")
	require.NoError(t, err)

	second, err := dir.LocationFor(ctx, "p-1")
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestDirectoryConcurrentFirstLookups(t *testing.T) {
	repo := NewMemoryRepository()
	dir := NewDirectory(repo, &countingResolver{})
	ctx := context.Background()

	const callers = 64
	results := make([]PatientLocation, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := dir.LocationFor(ctx, "p-race")
			assert.NoError(t, err)
			if loc != nil {
				results[i] = *loc
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}

	stored, err := repo.GetLocation(ctx, "p-race")
	require.NoError(t, err)
	assert.Equal(t, results[0], *stored)
}

func TestDirectoryRejectsInvalidResolverOutput(t *testing.T) {
	repo := NewMemoryRepository()
	dir := NewDirectory(repo, StaticResolver{Points: map[string]geo.Point{"p-bad": {Lat: 123, Lng: 0}}})

	_, err := dir.LocationFor(context.Background(), "p-bad")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = repo.GetLocation(context.Background(), "p-bad")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

// blockingResolver parks every Resolve until release is closed.
type blockingResolver struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newBlockingResolver() *blockingResolver {
	return &blockingResolver{entered: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingResolver) Resolve(ctx context.Context, _ string) (geo.Point, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.entered) })
	select {
	case <-r.release:
		return geo.Point{Lat: 40.7128, Lng: -74.0060}, nil
	case <-ctx.Done():
		return geo.Point{}, ctx.Err()
	}
}

func TestDirectoryCancelledCallerDoesNotFailOthers(t *testing.T) {
	repo := NewMemoryRepository()
	resolver := newBlockingResolver()
	dir := NewDirectory(repo, resolver)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := dir.LocationFor(firstCtx, "p-shared")
		firstErr <- err
	}()
	<-resolver.entered

	type result struct {
		loc *PatientLocation
		err error
	}
	second := make(chan result, 1)
	go func() {
		loc, err := dir.LocationFor(context.Background(), "p-shared")
		second <- result{loc, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(resolver.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 40.7128, res.loc.Lat)

	stored, err := repo.GetLocation(context.Background(), "p-shared")
	require.NoError(t, err)
	assert.Equal(t, *res.loc, *stored)
	assert.Equal(t, int32(1), resolver.calls.Load())
}
