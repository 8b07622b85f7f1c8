// Package simulator is an in-memory stand-in for the imagery, detection and
// tasking services. Pipelines advance one step per status call, so a client
// sees NEW, then PROCESSING, then a terminal state.
package simulator

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"skctl/internal/auth"
	"skctl/internal/detection"
	"skctl/internal/task"
	"skctl/pkg/api"
)

const (
	kindSearch = "search"
	kindImage  = "get-image"
	kindKraken = "kraken"
)

var (
	errPipelineNotFound = errors.New("pipeline not found")
	errNotResolved      = errors.New("pipeline is not resolved")
)

type pipeline struct {
	id        string
	kind      string
	status    task.Status
	remaining int
	fail      bool

	scenes  []api.SceneMetadata
	image   *imageJob
	mapType detection.MapType
	tiles   []api.Tile
}

type imageJob struct {
	scene   api.SceneMetadata
	rows    int
	cols    int
	archive []byte
}

// Backend holds every pipeline the simulator has created.
type Backend struct {
	mu        sync.Mutex
	pipelines map[string]*pipeline
	archives  map[string]*imageJob
	known     map[string]api.SceneMetadata

	steps   int
	scenes  []api.SceneMetadata
	failing map[string]bool
	tokens  map[string]struct{}
	limit   rate.Limit
	burst   int
	log     *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithSteps sets how many status calls a pipeline takes to finish.
func WithSteps(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.steps = n
		}
	}
}

// WithScenes fixes the search results. Without it scenes are generated from
// the search request.
func WithScenes(scenes ...api.SceneMetadata) Option {
	return func(b *Backend) { b.scenes = scenes }
}

// WithFailingScene makes image and detection pipelines for sceneID end FAILED.
func WithFailingScene(sceneID string) Option {
	return func(b *Backend) { b.failing[sceneID] = true }
}

// WithTokens restricts access to the given bearer tokens. Without it any
// non-empty token is accepted.
func WithTokens(tokens ...string) Option {
	return func(b *Backend) {
		for _, t := range tokens {
			b.tokens[auth.HashToken(t)] = struct{}{}
		}
	}
}

// WithRateLimit limits each token to perSecond requests with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(b *Backend) {
		b.limit = rate.Limit(perSecond)
		b.burst = max(burst, 1)
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// NewBackend returns a Backend whose pipelines resolve after two status calls.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		pipelines: make(map[string]*pipeline),
		archives:  make(map[string]*imageJob),
		known:     make(map[string]api.SceneMetadata),
		steps:     2,
		failing:   make(map[string]bool),
		tokens:    make(map[string]struct{}),
		limit:     rate.Inf,
		log:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) create(p *pipeline) api.PipelineResponse {
	p.id = uuid.NewString()
	p.status = task.StatusNew
	p.remaining = b.steps

	b.mu.Lock()
	b.pipelines[p.id] = p
	b.mu.Unlock()

	b.log.Info("pipeline created", "pipeline_id", p.id, "kind", p.kind)
	return api.PipelineResponse{PipelineID: p.id, Status: p.status.String()}
}

// advance moves a pipeline one step towards its terminal state.
func (b *Backend) advance(id string) (task.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pipelines[id]
	if !ok {
		return "", errPipelineNotFound
	}
	if p.status.Terminal() {
		return p.status, nil
	}

	p.remaining--
	switch {
	case p.remaining > 0:
		p.status = task.StatusProcessing
	case p.fail:
		p.status = task.StatusFailed
	default:
		p.status = task.StatusResolved
	}
	return p.status, nil
}

// resolved returns a resolved pipeline of the given kind.
func (b *Backend) resolved(id, kind string) (*pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pipelines[id]
	if !ok || p.kind != kind {
		return nil, errPipelineNotFound
	}
	if p.status != task.StatusResolved {
		return nil, errNotResolved
	}
	return p, nil
}

func (b *Backend) remember(scenes []api.SceneMetadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range scenes {
		b.known[s.SceneID] = s
	}
}

func (b *Backend) scene(id string) api.SceneMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.known[id]; ok {
		return s
	}
	for _, s := range b.scenes {
		if s.SceneID == id {
			return s
		}
	}
	return api.SceneMetadata{SceneID: id, Bands: defaultBands()}
}

// publish stores the archive of an image pipeline under its download id.
func (b *Backend) publish(id string, job *imageJob) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.archives[id] = job
}

func (b *Backend) archive(id string) (*imageJob, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.archives[id]
	return job, ok
}

// detectionMap returns the tiles of a resolved detection pipeline.
func (b *Backend) detectionMap(mapID string) (*pipeline, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pipelines[mapID]
	if !ok || p.kind != kindKraken || p.status != task.StatusResolved {
		return nil, false
	}
	return p, true
}

// Count returns the number of pipelines by status.
func (b *Backend) Count() map[task.Status]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[task.Status]int64, 4)
	for _, p := range b.pipelines {
		counts[p.status]++
	}
	return counts
}
