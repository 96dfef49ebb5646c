// Package slice is the control surface shared by the CLI and the HTTP
// server: create, list, show and delete slices.
package slice

import (
	"context"
	"fmt"
	"time"

	"github.com/h3ow3d/slicemgr/internal/backend"
	"github.com/h3ow3d/slicemgr/internal/config"
	"github.com/h3ow3d/slicemgr/internal/dispatch"
	"github.com/h3ow3d/slicemgr/internal/log"
	"github.com/h3ow3d/slicemgr/internal/manifest"
	"github.com/h3ow3d/slicemgr/internal/metrics"
	"github.com/h3ow3d/slicemgr/internal/normalize"
)

// Manager routes slice operations to the backend. It is safe for concurrent
// use; it keeps no slice state of its own.
type Manager struct {
	client     *backend.Client
	dispatcher *dispatch.Dispatcher
	format     manifest.Format
}

// New returns a Manager using client for list/show/delete and d for deploys.
func New(client *backend.Client, d *dispatch.Dispatcher, format manifest.Format) *Manager {
	return &Manager{client: client, dispatcher: d, format: format}
}

// FromConfig wires a Manager from cfg.
func FromConfig(cfg *config.Config) *Manager {
	client := cfg.Client()
	d := dispatch.New(dispatch.Options{
		Command:    client.Deploy,
		ScratchDir: cfg.ScratchDir,
		Format:     cfg.DocumentFormat(),
		Timeout:    cfg.Timeout,
	})
	return New(client, d, cfg.DocumentFormat())
}

// Create normalizes req and dispatches it. A returned error is always a
// *normalize.ValidationError and means nothing was dispatched; otherwise the
// Outcome says whether the backend deployed the slice.
func (m *Manager) Create(ctx context.Context, req normalize.RawCreateRequest) (dispatch.Outcome, error) {
	doc, err := normalize.Normalize(req)
	if err != nil {
		if reason, ok := normalize.ReasonOf(err); ok {
			metrics.RecordValidationFailure(string(reason))
		}
		log.Error(fmt.Sprintf("Rejected create request (%s channel): %v", req.Channel(), err))
		return dispatch.Outcome{}, err
	}

	name := doc.SliceName()
	log.Info(fmt.Sprintf("Deploying slice %s (%s channel)", displayName(name), req.Channel()))

	start := time.Now()
	o := m.dispatcher.Dispatch(ctx, doc)
	metrics.RecordDispatch(metrics.OpCreate, resultLabel(o), time.Since(start))

	if o.OK() {
		log.Ok(fmt.Sprintf("Slice %s deployed", displayName(name)))
	} else {
		log.Error(fmt.Sprintf("Slice %s not deployed: %s", displayName(name), o))
	}
	log.Debug("backend output: " + o.Detail)
	return o, nil
}

// Render normalizes req and returns the document that Create would hand to
// the backend, without dispatching it.
func (m *Manager) Render(req normalize.RawCreateRequest) ([]byte, error) {
	doc, err := normalize.Normalize(req)
	if err != nil {
		return nil, err
	}
	return doc.Bytes(m.format)
}

// List returns the slice names known to the backend. Any backend failure
// yields an empty list.
func (m *Manager) List(ctx context.Context) []string {
	names, err := m.client.ListSlices(ctx)
	if err != nil {
		metrics.RecordListFailure()
		log.Warn(fmt.Sprintf("Listing slices failed, showing none: %v", err))
		return []string{}
	}
	if names == nil {
		names = []string{}
	}
	return names
}

// Show returns the backend's status text for name. Errors wrap
// backend.ErrUnavailable when the show command cannot run, or are a
// *backend.ExitError when it ran and failed.
func (m *Manager) Show(ctx context.Context, name string) (string, error) {
	info, err := m.client.ShowSlice(ctx, name)
	if err != nil {
		return "", fmt.Errorf("show slice %q: %w", name, err)
	}
	return info, nil
}

// Delete asks the backend to remove name. It shares the per-slice lock with
// Create so a delete never races a deploy of the same slice.
func (m *Manager) Delete(ctx context.Context, name string) dispatch.Outcome {
	if err := backend.CheckName(name); err != nil {
		return dispatch.Failure(dispatch.ReasonInvalid, err.Error())
	}

	log.Info(fmt.Sprintf("Deleting slice %s", name))
	start := time.Now()
	o := m.dispatcher.Exclusive(ctx, name, func(ctx context.Context) dispatch.Outcome {
		res, err := m.client.DeleteSlice(ctx, name)
		return m.dispatcher.Classify(res, err)
	})
	metrics.RecordDispatch(metrics.OpDelete, resultLabel(o), time.Since(start))

	if o.OK() {
		log.Ok(fmt.Sprintf("Slice %s deleted", name))
	} else {
		log.Error(fmt.Sprintf("Slice %s not deleted: %s", name, o))
	}
	return o
}

func resultLabel(o dispatch.Outcome) string {
	if o.OK() {
		return string(dispatch.StatusSuccess)
	}
	return string(o.Reason)
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed upload)"
	}
	return name
}
