package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
)

// SetupOptions configures Setup.
type SetupOptions struct {
	// Owner identifies the problem claiming the tree.
	Owner string
	// StrictCycles turns a cycle under a single-pass solver into an error.
	StrictCycles bool
	// DefaultNonlinear and DefaultLinear build the solvers installed on
	// groups that have none.
	DefaultNonlinear func() NonlinearSolver
	DefaultLinear    func() LinearSolver
}

// setupState carries the intermediate results of the setup phases.
type setupState struct {
	opts  SetupOptions
	root  *Group
	model *Model

	groups []*Group
	ns     map[*Group]*namespace
	uf     *unionFind
	routes []*Route
	errs   *multierror.Error
}

// Setup resolves the tree under root into a frozen Model. Structural errors
// of phases three to seven are collected and reported together.
func Setup(ctx context.Context, root *Group, opts SetupOptions) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Setup: Starting model construction.", "owner", opts.Owner)

	if root.parent != nil {
		return nil, &mdaoerr.OwnershipViolationError{System: root.treePath(), Owner: "group " + displayPath(root.parent.treePath())}
	}

	// Phase 1: ownership.
	if err := claim(root, opts.Owner); err != nil {
		return nil, err
	}
	if root.frozen {
		return nil, &mdaoerr.AlreadySetUpError{Op: "set up a model twice"}
	}
	logger.Debug("Setup: Ownership claimed.")

	st := &setupState{
		opts: opts,
		root: root,
		model: &Model{
			Owner:  opts.Owner,
			Root:   root,
			byPath: make(map[string]*VarInfo),
			routes: make(map[*VarInfo]*Route),
		},
		ns: make(map[*Group]*namespace),
		uf: newUnionFind(),
	}

	// Phase 2: pathnames and variables.
	if err := st.assignPaths(ctx, root, ""); err != nil {
		release(root, opts.Owner)
		return nil, err
	}
	logger.Debug("Setup: Pathnames assigned.", "groups", len(st.groups), "components", len(st.model.comps), "vars", len(st.model.vars))

	// Phases 3 to 7 accumulate structural errors.
	st.promote(ctx)
	logger.Debug("Setup: Promotion resolved.", "implicit_routes", len(st.routes), "aliases", len(st.model.aliases))

	st.connectExplicit(ctx)
	logger.Debug("Setup: Explicit connections resolved.", "routes", len(st.routes))

	st.mergeRoutes()
	logger.Debug("Setup: Connection set merged.", "routes", len(st.model.routes))

	st.validateRoutes()
	logger.Debug("Setup: Connections validated.")

	st.order(ctx)
	logger.Debug("Setup: Execution order analysed.", "diagnostics", len(st.model.diags))

	if st.errs != nil {
		release(root, opts.Owner)
		st.errs.ErrorFormat = formatSetupErrors
		logger.Debug("Setup: Model construction failed.", "errors", len(st.errs.Errors))
		return nil, st.errs
	}

	// Phase 8: layout.
	st.layout(root, 0)
	st.syncAliases()
	logger.Debug("Setup: Layout built.", "size", st.model.size)

	// Phase 9: freeze.
	st.freeze()

	for _, d := range st.model.diags {
		logger.Warn("Setup: Diagnostic.", "kind", d.Kind.String(), "group", displayPath(d.Group), "message", d.Message)
	}
	logger.Info("Setup: Model construction successful.", "vars", len(st.model.vars), "size", st.model.size)
	return st.model, nil
}

func (st *setupState) fail(err error) {
	st.errs = multierror.Append(st.errs, err)
}

func formatSetupErrors(es []error) string {
	points := make([]string, len(es))
	for i, err := range es {
		points[i] = "- " + err.Error()
	}
	return fmt.Sprintf("setup failed:\n%s", strings.Join(points, "\n"))
}

// freeze rejects further structural changes and attaches the model.
func (st *setupState) freeze() {
	walk(st.root, func(s System) {
		b := s.base()
		b.frozen = true
		b.model = st.model
		if c, ok := s.(*Component); ok {
			c.reg.Freeze()
		}
	})
}

// Release undoes setup: the tree is unfrozen and unclaimed, and can be
// modified or set up again by another owner.
func (m *Model) Release() {
	walk(m.Root, func(s System) {
		b := s.base()
		b.frozen = false
		b.model = nil
		switch s := s.(type) {
		case *Component:
			s.reg.Thaw()
			s.infos = nil
			s.setJacobian(nil)
		case *Group:
			s.transfers = nil
			s.waves = nil
			s.comps = nil
		}
	})
	release(m.Root, m.Owner)
}
