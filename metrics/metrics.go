// Package metrics exposes federation counters to prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/graph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeOK        = "ok"
)

var (
	// RelayDeliveries counts outbound inbox deliveries by activity type and outcome
	RelayDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodelink_relay_deliveries_total",
		Help: "Outbound inbox deliveries by activity type and outcome",
	}, []string{"type", "outcome"})

	// InboxActivities counts inbound activities by type and outcome
	InboxActivities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodelink_inbox_activities_total",
		Help: "Inbound inbox activities by type and outcome",
	}, []string{"type", "outcome"})

	// SyncNodes counts remote author sync runs per node by outcome
	SyncNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodelink_sync_nodes_total",
		Help: "Remote author sync attempts per node by outcome",
	}, []string{"outcome"})

	SyncAuthors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodelink_sync_authors_total",
		Help: "Remote authors upserted by the sync job",
	})

	// GraphTransitions counts committed follow and friend transitions
	GraphTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodelink_graph_transitions_total",
		Help: "Committed social graph transitions by event",
	}, []string{"event"})
)

// ObserveGraph registers hooks that count committed graph transitions.
func ObserveGraph(h *graph.Hooks) {
	follow := func(event string) graph.FollowHook {
		return func(context.Context, domain.Follow) { GraphTransitions.WithLabelValues(event).Inc() }
	}
	friend := func(event string) graph.FriendHook {
		return func(context.Context, domain.Friend) { GraphTransitions.WithLabelValues(event).Inc() }
	}
	h.OnFollowRequested = append(h.OnFollowRequested, follow("follow_requested"))
	h.OnFollowAccepted = append(h.OnFollowAccepted, follow("follow_accepted"))
	h.OnFollowDenied = append(h.OnFollowDenied, follow("follow_denied"))
	h.OnFollowRemoved = append(h.OnFollowRemoved, follow("follow_removed"))
	h.OnFriendCreated = append(h.OnFriendCreated, friend("friend_created"))
	h.OnFriendRemoved = append(h.OnFriendRemoved, friend("friend_removed"))
}

// DeliveryOutcome maps a relay result to an outcome label.
func DeliveryOutcome(res *domain.DeliveryResult) string {
	switch {
	case res == nil || res.Err != nil:
		return OutcomeFailed
	case res.Skipped:
		return OutcomeSkipped
	}
	return OutcomeDelivered
}

func Handler() http.Handler {
	return promhttp.Handler()
}
