package serving

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"fraudguard/ml"
	"fraudguard/registry"
)

// ErrNoModelAvailable means every configured fallback source failed.
var ErrNoModelAvailable = errors.New("model not available")

// ArtifactSource is the slice of the registry client the resolver needs.
type ArtifactSource interface {
	DownloadArtifactByAlias(ctx context.Context, name, alias string) ([]byte, error)
	DownloadArtifactByStage(ctx context.Context, name, stage string) ([]byte, error)
	GetVersionByAlias(ctx context.Context, name, alias string) (registry.ModelVersion, error)
	GetLatestVersionForStage(ctx context.Context, name, stage string) (registry.ModelVersion, error)
}

// Resolution pairs a loaded classifier with its binding.
type Resolution struct {
	Model   ml.Classifier
	Binding Binding
}

// ResolverAPI lets the cache take a fake resolver in tests.
type ResolverAPI interface {
	Resolve(ctx context.Context) (Resolution, error)
}

// Resolver materializes a classifier by walking the ordered fallback chain:
// registry alias, then registry stage, then a local artifact file. The chain
// stops at the first source that loads; each failure is recorded and the
// next source tried. Aliases are the modern pointer mechanism, stages are
// deprecated but still honored, and the local file is the disaster-recovery
// path for when the registry is unreachable.
type Resolver struct {
	registry  ArtifactSource
	name      string
	alias     string
	stage     string
	localPath string
	log       *zap.Logger
}

// NewResolver builds a resolver. Empty alias/stage/localPath disable the
// corresponding source.
func NewResolver(reg ArtifactSource, name, alias, stage, localPath string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		registry:  reg,
		name:      name,
		alias:     alias,
		stage:     stage,
		localPath: localPath,
		log:       log,
	}
}

// Resolve runs the fallback chain. On total failure it returns
// ErrNoModelAvailable and an empty binding whose LastErrors holds every
// per-source failure for diagnostics.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	binding := EmptyBinding()

	type step struct {
		source  Source
		enabled bool
		load    func(ctx context.Context) (ml.Classifier, Binding, error)
	}
	chain := []step{
		{SourceAlias, r.alias != "", r.loadByAlias},
		{SourceStage, r.stage != "", r.loadByStage},
		{SourceLocal, r.localPath != "", r.loadLocal},
	}

	for _, s := range chain {
		if !s.enabled {
			continue
		}
		model, resolved, err := s.load(ctx)
		if err != nil {
			binding.LastErrors[string(s.source)] = err.Error()
			r.log.Warn("model source failed",
				zap.String("source", string(s.source)),
				zap.Error(err))
			continue
		}
		resolved.LastErrors = binding.LastErrors
		r.log.Info("model resolved",
			zap.String("source", string(resolved.Source)),
			zap.String("version", resolved.Version))
		return Resolution{Model: model, Binding: resolved}, nil
	}

	return Resolution{Binding: binding}, ErrNoModelAvailable
}

func (r *Resolver) loadByAlias(ctx context.Context) (ml.Classifier, Binding, error) {
	payload, err := r.registry.DownloadArtifactByAlias(ctx, r.name, r.alias)
	if err != nil {
		return nil, Binding{}, err
	}
	model, err := ml.UnmarshalModel(payload)
	if err != nil {
		return nil, Binding{}, err
	}
	binding := Binding{Source: SourceAlias, Name: r.name, Alias: r.alias}
	// Version lookup is diagnostics only; failure leaves it unknown.
	if mv, err := r.registry.GetVersionByAlias(ctx, r.name, r.alias); err == nil {
		binding.Version = mv.Version
	} else {
		r.log.Debug("alias version lookup failed", zap.Error(err))
	}
	return model, binding, nil
}

func (r *Resolver) loadByStage(ctx context.Context) (ml.Classifier, Binding, error) {
	payload, err := r.registry.DownloadArtifactByStage(ctx, r.name, r.stage)
	if err != nil {
		return nil, Binding{}, err
	}
	model, err := ml.UnmarshalModel(payload)
	if err != nil {
		return nil, Binding{}, err
	}
	binding := Binding{Source: SourceStage, Name: r.name, Stage: r.stage}
	if mv, err := r.registry.GetLatestVersionForStage(ctx, r.name, r.stage); err == nil {
		binding.Version = mv.Version
	} else {
		r.log.Debug("stage version lookup failed", zap.Error(err))
	}
	return model, binding, nil
}

func (r *Resolver) loadLocal(_ context.Context) (ml.Classifier, Binding, error) {
	if _, err := os.Stat(r.localPath); err != nil {
		return nil, Binding{}, fmt.Errorf("local artifact: %w", err)
	}
	model, err := ml.LoadModel(r.localPath)
	if err != nil {
		return nil, Binding{}, fmt.Errorf("local artifact: %w", err)
	}
	// Local fallback carries no registry provenance.
	return model, Binding{Source: SourceLocal}, nil
}
