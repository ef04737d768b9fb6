package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Ning0612/fsbridge/internal/adapter"
	"github.com/Ning0612/fsbridge/internal/adapter/gdrive"
	"github.com/Ning0612/fsbridge/internal/adapter/local"
	"github.com/Ning0612/fsbridge/internal/adapter/slots"
	"github.com/Ning0612/fsbridge/internal/adapter/smb"
	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/history"
	"github.com/Ning0612/fsbridge/internal/lock"
	"github.com/Ning0612/fsbridge/internal/logger"
	"github.com/Ning0612/fsbridge/internal/service"
)

// newRegistry registers a factory for every backend type
func newRegistry(log logger.Logger) *adapter.Registry {
	r := adapter.NewRegistry()

	r.Register(domain.TransportLocal, func(ctx context.Context, t domain.Transport) (adapter.Adapter, error) {
		return local.New(t.Root, t.Extension)
	})
	r.Register(domain.TransportSlots, func(ctx context.Context, t domain.Transport) (adapter.Adapter, error) {
		return slots.New(t.Root, t.Extension, t.Slots)
	})
	r.Register(domain.TransportGDrive, func(ctx context.Context, t domain.Transport) (adapter.Adapter, error) {
		return gdrive.New(ctx, t, log)
	})
	r.Register(domain.TransportSMB, func(ctx context.Context, t domain.Transport) (adapter.Adapter, error) {
		store, err := smb.NewKeyringStore()
		if err != nil {
			// Config-only credentials still work without a keyring
			log.Warn("keyring unavailable", "error", err)
			store = nil
		}
		return smb.New(ctx, t, store, log)
	})

	return r
}

// transport resolves --backend, or the only configured transport
func (a *app) transport() (*domain.Transport, error) {
	if a.backend != "" {
		return a.cfg.GetTransport(a.backend)
	}
	switch len(a.cfg.Transports) {
	case 0:
		return nil, fmt.Errorf("%w: no transports configured", domain.ErrTransportNotFound)
	case 1:
		return &a.cfg.Transports[0], nil
	}
	return nil, fmt.Errorf("several transports configured, choose one with --backend: %v", a.cfg.TransportNames())
}

func (a *app) lockDir() string {
	return filepath.Join(a.cfg.DataDir, "locks")
}

// openTransfer connects to the selected backend. The returned close
// function releases the backend and the history database.
func (a *app) openTransfer(ctx context.Context) (*service.Transfer, func(), error) {
	t, err := a.transport()
	if err != nil {
		return nil, nil, err
	}

	ops, err := newRegistry(a.log).Create(ctx, *t)
	if err != nil {
		return nil, nil, err
	}

	fl, err := lock.NewFileLock(a.lockDir(), t.Name)
	if err != nil {
		ops.Close()
		return nil, nil, err
	}

	store, err := history.Open(a.cfg.DataDir, a.log)
	if err != nil {
		// Transfers still work without a history
		a.log.Warn("transfer history unavailable", "error", err)
		store = nil
	}

	tr, err := service.NewTransfer(service.Options{
		Name:      t.Name,
		Ops:       ops,
		Lock:      fl,
		History:   store,
		Log:       a.log,
		Verbosity: a.debugLevel(),
	})
	if err != nil {
		ops.Close()
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}

	closeFn := func() {
		if err := tr.Close(); err != nil {
			a.log.Warn("failed to close backend", "backend", t.Name, "error", err)
		}
		if store != nil {
			store.Close()
		}
	}
	return tr, closeFn, nil
}
