package graph

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/taskgraph/internal/errors"
)

// Save writes p to path as YAML. The file is replaced atomically.
func (p *Plan) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal plan")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create plan directory")
		}
	}

	fl := newFileLock(path)
	if err := fl.lock(false); err != nil {
		return errors.Wrap(err, "acquire lock")
	}
	defer func() { _ = fl.unlock() }()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

// Load reads and validates the plan at path. A plan without a name is named
// after its file.
func Load(path string) (*Plan, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("plan", path).WithCause(err)
		}
		return nil, errors.Wrap(err, "stat plan")
	}

	fl := newFileLock(path)
	if err := fl.lock(true); err != nil {
		return nil, errors.Wrap(err, "acquire lock")
	}
	defer func() { _ = fl.unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read plan")
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.NewValidationError("plan is not valid YAML").WithField(path).WithCause(err)
	}
	if p.Name == "" {
		p.Name = filepath.Base(path)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(err, "plan %s", path)
	}
	return &p, nil
}

// LoadAll loads the plans at paths concurrently, at most limit at a time.
// It fails on the first plan that cannot be loaded. Results keep the order of
// paths.
func LoadAll(ctx context.Context, paths []string, limit int) ([]*Plan, error) {
	plans := make([]*Plan, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := Load(path)
			if err != nil {
				return err
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}
