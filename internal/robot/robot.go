// Package robot turns a robot configuration into live resources and the
// collectors bound to them.
package robot

import (
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/collector"
	"github.com/mattjperez/micro-rdk/internal/component"
	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/registry"
	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

const CaptureMethodsAttribute = "capture_methods"

var (
	ErrDuplicateResource    = errors.New("duplicate resource")
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	ErrDuplicateCollector   = errors.New("duplicate collector")
)

// Robot is the resource graph built from one configuration revision.
type Robot struct {
	revision   string
	resources  map[registry.ResourceKey]component.Resource
	collectors []*collector.DataCollector
	failures   map[string]error
}

func (r *Robot) Revision() string { return r.revision }

func (r *Robot) Resource(key registry.ResourceKey) (component.Resource, bool) {
	res, ok := r.resources[key]
	return res, ok
}

// Keys returns the keys of all built resources, sorted.
func (r *Robot) Keys() []registry.ResourceKey {
	keys := make([]registry.ResourceKey, 0, len(r.resources))
	for k := range r.resources {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (r *Robot) Collectors() []*collector.DataCollector { return r.collectors }

// Failures maps each component, or collector key, that was skipped to the
// reason it was skipped.
func (r *Robot) Failures() map[string]error { return r.failures }

type pending struct {
	key registry.ResourceKey
	cfg robotconfig.DynamicComponentConfig
	raw robotconfig.ComponentConfig
}

type builder struct {
	log *slog.Logger
	reg *registry.Registry
	r   *Robot
	// declared holds every resource present in the configuration.
	declared map[registry.ResourceKey]pending
	skipped  map[registry.ResourceKey]bool
}

// Build constructs every component it can. A component whose model is
// unknown, whose constructor fails or whose dependencies cannot be built is
// logged and skipped; the rest of the robot is still built.
func Build(log *slog.Logger, reg *registry.Registry, cfg *robotconfig.RobotConfig) (*Robot, error) {
	if cfg == nil {
		return nil, errors.New("nil robot config")
	}
	b := &builder{
		log: log,
		reg: reg,
		r: &Robot{
			revision:  cfg.Revision,
			resources: map[registry.ResourceKey]component.Resource{},
			failures:  map[string]error{},
		},
		declared: map[registry.ResourceKey]pending{},
		skipped:  map[registry.ResourceKey]bool{},
	}

	var order []registry.ResourceKey
	for _, cc := range cfg.Components {
		p, err := parse(cc)
		if err != nil {
			b.fail(cc.Name, err)
			continue
		}
		if _, dup := b.declared[p.key]; dup {
			b.fail(cc.Name, errors.Wrapf(ErrDuplicateResource, "%s", p.key))
			continue
		}
		b.declared[p.key] = p
		order = append(order, p.key)
	}

	var rest []pending
	for _, key := range order {
		p := b.declared[key]
		if key.ComponentType == component.BoardType {
			b.build(p, nil)
			continue
		}
		rest = append(rest, p)
	}
	b.resolve(rest)

	for _, key := range order {
		if res, ok := b.r.resources[key]; ok {
			b.collectors(b.declared[key].raw, res)
		}
	}

	log.Info("robot built",
		slog.String("revision", cfg.Revision),
		slog.Int("resources", len(b.r.resources)),
		slog.Int("collectors", len(b.r.collectors)),
		slog.Int("skipped", len(b.r.failures)),
	)
	return b.r, nil
}

func parse(cc robotconfig.ComponentConfig) (pending, error) {
	dyn, err := cc.Dynamic()
	if err != nil {
		return pending{}, err
	}
	key, err := registry.ResourceKeyFromName(dyn.Name)
	if err != nil {
		return pending{}, errors.Wrapf(err, "component %q", cc.Name)
	}
	return pending{key: key, cfg: dyn, raw: cc}, nil
}

// resolve builds components once all their dependencies are built, repeating
// until a pass makes no progress.
func (b *builder) resolve(queue []pending) {
	for len(queue) > 0 {
		var next []pending
		progress := false
		for _, p := range queue {
			deps, err := b.dependencies(p)
			if err != nil {
				b.skip(p, err)
				progress = true
				continue
			}
			ready, ok := b.ready(deps)
			if !ok {
				next = append(next, p)
				continue
			}
			b.build(p, ready)
			progress = true
		}
		if !progress {
			for _, p := range next {
				b.skip(p, errors.Wrapf(ErrUnresolvedDependency, "%s", p.key))
			}
			return
		}
		queue = next
	}
}

// dependencies merges the model's resolver output with depends_on. A
// dependency that is not declared, or was already skipped, can never be met.
func (b *builder) dependencies(p pending) ([]registry.ResourceKey, error) {
	var keys []registry.ResourceKey
	if resolver, err := b.reg.DependencyResolver(p.key.ComponentType, p.cfg.Model.Name); err == nil {
		keys = append(keys, resolver(p.cfg)...)
	}
	for _, name := range p.cfg.DependsOn {
		k, err := registry.ResourceKeyFromName(name)
		if err != nil {
			return nil, errors.Wrapf(err, "depends_on of %s", p.key)
		}
		keys = append(keys, k)
	}

	seen := map[registry.ResourceKey]bool{}
	out := keys[:0]
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := b.declared[k]; !ok {
			return nil, errors.Wrapf(ErrUnresolvedDependency, "%s needs undeclared %s", p.key, k)
		}
		if b.skipped[k] {
			return nil, errors.Wrapf(ErrUnresolvedDependency, "%s needs skipped %s", p.key, k)
		}
		out = append(out, k)
	}
	return out, nil
}

func (b *builder) ready(keys []registry.ResourceKey) ([]registry.Dependency, bool) {
	deps := make([]registry.Dependency, 0, len(keys))
	for _, k := range keys {
		res, ok := b.r.resources[k]
		if !ok {
			return nil, false
		}
		deps = append(deps, registry.Dependency{Key: k, Resource: res})
	}
	return deps, true
}

func (b *builder) build(p pending, deps []registry.Dependency) {
	res, err := b.reg.Build(p.key.ComponentType, p.cfg, deps)
	if err != nil {
		b.skip(p, errors.Wrapf(err, "cannot build %s", p.key))
		return
	}
	b.r.resources[p.key] = res
	b.log.Debug("resource built",
		slog.String("resource", p.key.String()),
		slog.String("model", p.cfg.Model.String()),
		slog.Int("dependencies", len(deps)),
	)
}

func (b *builder) collectors(cc robotconfig.ComponentConfig, res component.Resource) {
	if !cc.Attributes.Has(CaptureMethodsAttribute) {
		return
	}

	methods, err := cc.Attributes.StructList(CaptureMethodsAttribute)
	if err != nil {
		b.fail(cc.Name, errors.Wrapf(err, "%s", CaptureMethodsAttribute))
		return
	}

	seen := map[collector.ResourceMethodKey]bool{}
	for _, existing := range b.r.collectors {
		seen[existing.ResourceMethodKey()] = true
	}

	for _, m := range methods {
		dc, err := collector.ParseConfig(m)
		if err != nil {
			b.fail(cc.Name, errors.Wrap(err, "cannot parse capture method"))
			continue
		}
		if dc.Disabled {
			continue
		}
		c, err := collector.FromConfig(cc.Name, res, dc)
		if err != nil {
			b.fail(cc.Name, errors.Wrap(err, "cannot create collector"))
			continue
		}
		key := c.ResourceMethodKey()
		if seen[key] {
			b.fail(key.String(), ErrDuplicateCollector)
			continue
		}
		seen[key] = true
		b.r.collectors = append(b.r.collectors, c)
	}
}

func (b *builder) skip(p pending, err error) {
	b.skipped[p.key] = true
	b.fail(p.cfg.Name.Name, err)
}

func (b *builder) fail(name string, err error) {
	b.log.Error("skipping component", slog.String("component", name), sl.Err(err))
	if _, exists := b.r.failures[name]; !exists {
		b.r.failures[name] = err
	}
}
