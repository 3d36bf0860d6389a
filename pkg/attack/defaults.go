package attack

import (
	"io"
	"log/slog"

	"github.com/gregLibert/emv-mutator/pkg/emv"
)

// Options configures NewDefaultRegistry. Zero values select the defaults.
type Options struct {
	Logger  *slog.Logger
	Metrics *Metrics

	// AFLEntries applies to compact GPO responses.
	AFLEntries int

	Scheduler *Scheduler
	Rand      io.Reader

	Dialect      string // "mastercard" when empty
	TriggerRound int
	Track2       []byte
	Profiles     map[emv.Dialect]emv.DialectProfile
}

// NewDefaultRegistry registers the three built-in processors.
func NewDefaultRegistry(opts Options) (*Registry, error) {
	dialect := opts.Dialect
	if dialect == "" {
		dialect = string(emv.DialectMastercard)
	}
	ck, err := NewCrossKernel(dialect)
	if err != nil {
		return nil, err
	}
	ck.AFLEntries = opts.AFLEntries
	if opts.TriggerRound > 0 {
		ck.TriggerRound = opts.TriggerRound
	}
	if len(opts.Track2) > 0 {
		ck.Track2 = opts.Track2
	}
	for d, prof := range opts.Profiles {
		ck.Profiles[d] = prof
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = NewScheduler()
	}

	r := NewRegistry(opts.Logger, opts.Metrics)
	processors := map[Type]Processor{
		TypeAuthDowngrade:  &Downgrade{AFLEntries: opts.AFLEntries},
		TypeStateConfusion: &StateConfusion{Scheduler: sched, Rand: opts.Rand, Metrics: opts.Metrics},
		TypeCrossKernel:    ck,
	}
	for _, t := range Types() {
		if err := r.Register(t, processors[t]); err != nil {
			return nil, err
		}
	}
	return r, nil
}
