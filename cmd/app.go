package cmd

import (
	"context"
	"fmt"

	"github.com/deemkeen/nodelink/activitypub"
	"github.com/deemkeen/nodelink/content"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/graph"
	"github.com/deemkeen/nodelink/metrics"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/util"
)

// app is the wired set of services every command works against.
type app struct {
	store    *db.DB
	registry *registry.Registry
	relay    *activitypub.Relay
	graph    *graph.Engine
	content  *content.Service
	ingestor *activitypub.Ingestor
	local    *domain.Node
}

func openApp(ctx context.Context, conf *util.AppConfig) (*app, error) {
	store, err := db.Open(util.DataPath(conf.Conf.Database))
	if err != nil {
		return nil, err
	}
	return wireApp(ctx, store, conf)
}

func wireApp(ctx context.Context, store *db.DB, conf *util.AppConfig) (*app, error) {
	reg := registry.New(store)
	local, err := reg.EnsureLocal(ctx, conf.Conf.BaseURL, conf.Conf.NodeUsername, conf.Conf.NodePassword)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("bootstrap local node: %w", err)
	}

	relay := activitypub.NewRelay(reg, conf.Conf.RelayTimeout)
	engine := graph.New(store, relay)
	metrics.ObserveGraph(&engine.Hooks)
	svc := content.New(store, engine, relay)

	return &app{
		store:    store,
		registry: reg,
		relay:    relay,
		graph:    engine,
		content:  svc,
		ingestor: activitypub.NewIngestor(store, reg, engine, svc),
		local:    local,
	}, nil
}

func (a *app) syncer(conf *util.AppConfig) *activitypub.Syncer {
	return activitypub.NewSyncer(a.store, a.registry, a.graph, conf.Conf.RelayTimeout, conf.Conf.SyncConcurrency)
}

func (a *app) Close() error {
	return a.store.Close()
}
