package settings

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
)

// State is a Record's lifecycle position.
type State int

const (
	Uninitialized State = iota
	Loading
	Loaded
	LoadError
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case LoadError:
		return "LoadError"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Record is a shared state cell for one settings block. The loader goroutine
// is the only writer; any number of readers poll Get/State through the lock.
type Record[T Settings] struct {
	mu    sync.RWMutex
	state State
	value T
	err   error
}

func (r *Record[T]) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Get returns the loaded value. ok is false unless state is Loaded.
func (r *Record[T]) Get() (value T, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value, r.state == Loaded
}

// Err returns the load failure, nil unless state is LoadError.
func (r *Record[T]) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != LoadError {
		return nil
	}
	return r.err
}

// Set stores a locally modified value, e.g. after a restore from YAML.
func (r *Record[T]) Set(v T) {
	r.mu.Lock()
	r.state = Loaded
	r.value = v
	r.err = nil
	r.mu.Unlock()
}

func (r *Record[T]) setLoading() {
	r.mu.Lock()
	r.state = Loading
	r.mu.Unlock()
}

func (r *Record[T]) finish(v T, err error) {
	r.mu.Lock()
	if err != nil {
		r.state = LoadError
		r.err = err
	} else {
		r.state = Loaded
		r.value = v
		r.err = nil
	}
	r.mu.Unlock()
}

// Bundle holds every tunable block of one TCU.
type Bundle struct {
	TCC Record[TccSettings]
	SOL Record[SolSettings]
	SBS Record[SbsSettings]
	NAG Record[NagSettings]
	PRM Record[PrmSettings]
	ADP Record[AdpSettings]
	ETS Record[EtsSettings]
}

// Load reads all blocks over one session. The session serializes the reads
// on the wire; the errgroup only coordinates completion and collects the
// first hard failure. Individual block failures land in their Record as
// LoadError and do not stop the others.
func (b *Bundle) Load(d *nag52.Diag) error {
	if err := d.Execute(EnterDevMode); err != nil {
		return fmt.Errorf("settings: enter dev mode: %w", err)
	}
	var g errgroup.Group
	loadInto(&g, d, &b.TCC)
	loadInto(&g, d, &b.SOL)
	loadInto(&g, d, &b.SBS)
	loadInto(&g, d, &b.NAG)
	loadInto(&g, d, &b.PRM)
	loadInto(&g, d, &b.ADP)
	loadInto(&g, d, &b.ETS)
	return g.Wait()
}

func loadInto[T Settings](g *errgroup.Group, d *nag52.Diag, rec *Record[T]) {
	rec.setLoading()
	g.Go(func() error {
		var v T
		err := d.Execute(func(s *nag52.Session) error {
			var err error
			v, err = ReadBlock[T](s)
			return err
		})
		rec.finish(v, err)
		if nag52.ShouldReconnect(err) {
			// Link-level failures poison every remaining read too.
			return err
		}
		return nil
	})
}
