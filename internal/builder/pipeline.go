package builder

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
	"github.com/ia-eknorr/stoker-bundler/pkg/conditions"
)

// Observer is told about every builder run.
type Observer func(builder string, mode Mode, elapsed time.Duration, records []Record, err error)

// Pipeline runs builders in ascending priority order.
type Pipeline struct {
	builders []Builder

	// Observer is called after each builder. Optional.
	Observer Observer
}

// NewPipeline orders builders by priority. Two builders with the same
// priority are rejected.
func NewPipeline(builders ...Builder) (*Pipeline, error) {
	sorted := slices.Clone(builders)
	slices.SortStableFunc(sorted, func(a, b Builder) int { return a.Priority() - b.Priority() })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Priority() == sorted[i-1].Priority() {
			return nil, conditions.Errorf(conditions.ReasonDuplicatePriority, "",
				"builders %s and %s share priority %d", sorted[i-1].Name(), sorted[i].Name(), sorted[i].Priority())
		}
	}
	return &Pipeline{builders: sorted}, nil
}

// Default returns the pipeline with every built-in builder.
func Default() *Pipeline {
	p, err := NewPipeline(
		FolderBuilder{},
		ClusterPropertyBuilder(),
		StoredPasswordBuilder(),
		TrustedCertBuilder(),
		IdentityProviderBuilder(),
		JdbcConnectionBuilder(),
		CassandraConnectionBuilder(),
		JmsDestinationBuilder(),
		MqNativeQueueBuilder(),
		Http2ClientConfigBuilder(),
		ListenPortBuilder{},
		PolicyBuilder{},
		EncassBuilder{},
		ServiceBuilder{},
		ScheduledTaskBuilder{},
	)
	if err != nil {
		panic(err)
	}
	return p
}

// Builders returns the builders in run order.
func (p *Pipeline) Builders() []Builder { return slices.Clone(p.builders) }

// Run executes every builder sequentially and concatenates their records.
func (p *Pipeline) Run(ctx context.Context, b *v1alpha1.Bundle, mode Mode, bc *Context) ([]Record, error) {
	var out []Record
	for _, bld := range p.builders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		records, err := bld.Build(b, mode, bc)
		if p.Observer != nil {
			p.Observer(bld.Name(), mode, time.Since(start), records, err)
		}
		if err != nil {
			return nil, fmt.Errorf("building %s %s: %w", mode, bld.Name(), err)
		}
		bc.Log.V(1).Info("builder finished", "builder", bld.Name(), "mode", mode.String(), "records", len(records))
		out = append(out, records...)
	}
	return out, nil
}
