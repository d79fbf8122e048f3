// Package bridge is the core of the AI engine: it relays events between a
// learner-facing WebSocket and one upstream realtime session, tracks the
// conversation transcript and timing, registers live sessions for
// out-of-band readers, and hands a closing Report to the persistence
// collaborator.
//
// One [Handler] owns one session end to end. Its [Handler.Run] method opens
// the upstream connection, sends the configuration handshake, then drives two
// concurrent relay loops until either side disconnects, at which point both
// connections are closed best-effort and the Report is built. The registry
// entry is removed on every exit path.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/malangee/ai-engine/internal/observe"
	"github.com/malangee/ai-engine/internal/protocol"
	"github.com/malangee/ai-engine/internal/realtime"
)

// ErrStartup marks fatal pre-relay failures: upstream unreachable, credential
// rejected, or the handshake could not be sent. A startup failure never
// produces a report. Test with errors.Is.
var ErrStartup = errors.New("startup failure")

// reportSaveTimeout bounds the persistence call after the connections are
// already gone.
const reportSaveTimeout = 10 * time.Second

// ClientConn is the learner-facing connection as the bridge sees it.
// Implementations wrap a WebSocket; tests use in-memory fakes.
type ClientConn interface {
	// Read blocks until the next inbound frame. It returns an error when the
	// connection closes or ctx is cancelled.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one frame to the client.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection with a normal status.
	Close() error

	// CloseError closes the connection with a server-error status, used when
	// the session could not be started.
	CloseError(reason string) error
}

// UpstreamConn is one live upstream realtime connection.
// *realtime.Conn satisfies it.
type UpstreamConn interface {
	ReadEvent(ctx context.Context) (realtime.Event, error)
	WriteJSON(ctx context.Context, v any) error
	Close() error
}

// UpstreamDialer opens upstream connections, one per session.
type UpstreamDialer interface {
	Dial(ctx context.Context) (UpstreamConn, error)
}

// DialerFunc adapts a function to the UpstreamDialer interface.
type DialerFunc func(ctx context.Context) (UpstreamConn, error)

// Dial implements UpstreamDialer.
func (f DialerFunc) Dial(ctx context.Context) (UpstreamConn, error) { return f(ctx) }

// Recorder is the persistence collaborator that accepts the end-of-session
// Report. Re-submitting a session identifier accumulates: implementations
// append the new messages and add the new durations to what they already
// hold, so a resumed session keeps every connection's transcript.
type Recorder interface {
	SaveReport(ctx context.Context, r *Report) error
}

// HistoryFetcher is the collaborator that loads the prior transcript of a
// resuming session. It returns the ordered prior messages, or nothing when
// the session is unknown to it or the owner does not match.
type HistoryFetcher interface {
	History(ctx context.Context, sessionID, ownerID string) ([]Message, error)
}

// HandlerConfig holds everything a Handler needs. Client, Upstream, and
// Registry are required; Recorder, History, and Metrics are optional.
type HandlerConfig struct {
	SessionID string
	OwnerID   string
	Client    ClientConn
	Upstream  UpstreamDialer
	Registry  *Registry
	Recorder  Recorder
	History   HistoryFetcher
	Config    realtime.SessionConfig
	Scenario  Scenario
	Metrics   *observe.Metrics
}

// Handler owns one session's lifecycle. Create with NewHandler, drive with
// Run. RecentContext and MarkScenarioCompleted may be called concurrently
// with Run by out-of-band readers holding the handler through the registry.
type Handler struct {
	sess     *Session
	client   ClientConn
	dialer   UpstreamDialer
	registry *Registry
	recorder Recorder
	history  HistoryFetcher
	ownerID  string
	metrics  *observe.Metrics
}

// NewHandler creates a Handler for one session.
func NewHandler(cfg HandlerConfig) *Handler {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Handler{
		sess:     NewSession(cfg.SessionID, cfg.Config, cfg.Scenario),
		client:   cfg.Client,
		dialer:   cfg.Upstream,
		registry: cfg.Registry,
		recorder: cfg.Recorder,
		history:  cfg.History,
		ownerID:  cfg.OwnerID,
		metrics:  m,
	}
}

// SessionID returns the session identifier.
func (h *Handler) SessionID() string { return h.sess.ID }

// State returns the session's current lifecycle state.
func (h *Handler) State() State { return h.sess.State() }

// Scenario returns the session's scenario metadata.
func (h *Handler) Scenario() Scenario { return h.sess.Scenario }

// RecentContext returns a copy of the last limit transcript messages. Safe
// concurrent with active relaying.
func (h *Handler) RecentContext(limit int) []Message { return h.sess.RecentContext(limit) }

// MarkScenarioCompleted records scenario-goal completion on the session.
func (h *Handler) MarkScenarioCompleted() { h.sess.MarkScenarioCompleted(time.Now()) }

// Run drives the session to completion and returns the closing Report, or
// nil when no messages were accumulated. It returns an error only for
// startup failures (wrapped ErrStartup); every error after the session is
// active is absorbed and ends the session through orderly teardown instead.
//
// The registry entry is removed on every exit path, including startup
// failure paths where the entry was never added.
func (h *Handler) Run(ctx context.Context) (*Report, error) {
	log := slog.With("session_id", h.sess.ID)

	// Load prior history before opening the upstream so it can be replayed
	// right after the handshake. Best effort: a failed lookup downgrades a
	// resumed session to a fresh one.
	if h.history != nil {
		seed, err := h.history.History(ctx, h.sess.ID, h.ownerID)
		if err != nil {
			log.Warn("bridge: prior history unavailable", "err", err)
		} else if len(seed) > 0 {
			h.sess.SeedHistory(seed)
			log.Info("bridge: loaded prior history", "messages", len(seed))
		}
	}

	up, err := h.dialer.Dial(ctx)
	if err != nil {
		h.sess.setState(StateErrored)
		_ = h.client.CloseError("upstream connection failed")
		return nil, fmt.Errorf("%w: connect upstream: %w", ErrStartup, err)
	}

	h.registry.Add(h.sess.ID, h)
	defer h.registry.Remove(h.sess.ID)

	// The configuration handshake goes out exactly once, before any relay
	// traffic; the upstream may reject the session otherwise.
	if err := up.WriteJSON(ctx, realtime.SessionUpdate(h.sess.Config)); err != nil {
		h.sess.setState(StateErrored)
		_ = up.Close()
		_ = h.client.CloseError("session configuration failed")
		return nil, fmt.Errorf("%w: send session config: %w", ErrStartup, err)
	}

	// Replay seeded history as synthetic turns so the model has continuity.
	for _, m := range h.sess.seedHistory() {
		if err := up.WriteJSON(ctx, realtime.CreateTextItem(string(m.Role), m.Content)); err != nil {
			h.sess.setState(StateErrored)
			_ = up.Close()
			_ = h.client.CloseError("session configuration failed")
			return nil, fmt.Errorf("%w: replay history: %w", ErrStartup, err)
		}
	}

	h.sess.setState(StateActive)
	log.Info("bridge: session active")
	h.metrics.ActiveSessions.Add(ctx, 1)
	defer h.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	// Two relay loops; whichever exits first cancels the sibling so a
	// one-sided disconnect never leaves the other loop parked on a dead
	// connection.
	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		defer cancel()
		h.relayClientToUpstream(relayCtx, up, log)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		h.relayUpstreamToClient(relayCtx, up, log)
		return nil
	})
	_ = g.Wait()

	// Teardown is best effort: both connections are closed regardless of
	// individual close failures.
	h.sess.setState(StateClosing)
	if err := up.Close(); err != nil {
		log.Debug("bridge: upstream close", "err", err)
	}
	if err := h.client.Close(); err != nil {
		log.Debug("bridge: client close", "err", err)
	}
	endedAt := time.Now().UTC()
	h.sess.setState(StateClosed)

	persistCtx := context.WithoutCancel(ctx)
	h.metrics.SessionDuration.Record(persistCtx, endedAt.Sub(h.sess.StartedAt).Seconds())

	if h.sess.TranscriptLen() == 0 {
		log.Info("bridge: session ended with empty transcript, nothing to persist")
		return nil, nil
	}

	report := BuildReport(h.sess, endedAt)
	report.OwnerID = h.ownerID
	if h.recorder != nil {
		saveCtx, cancelSave := context.WithTimeout(persistCtx, reportSaveTimeout)
		defer cancelSave()
		if err := h.recorder.SaveReport(saveCtx, report); err != nil {
			log.Warn("bridge: report save failed", "err", err)
			h.metrics.RecordReportSave(saveCtx, "error")
		} else {
			h.metrics.RecordReportSave(saveCtx, "ok")
		}
	}

	log.Info("bridge: session closed",
		"messages", len(report.Messages),
		"duration", report.TotalDuration,
		"user_speech", report.UserSpeechDuration,
	)
	return report, nil
}

// relayClientToUpstream drains the client connection and forwards translated
// events upstream in strict receipt order. Malformed or unrecognised client
// messages are logged and skipped; a closed connection ends the loop cleanly.
func (h *Handler) relayClientToUpstream(ctx context.Context, up UpstreamConn, log *slog.Logger) {
	for {
		data, err := h.client.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Info("bridge: client disconnected")
			}
			return
		}

		ev, err := protocol.ParseClientEvent(data)
		if err != nil {
			log.Warn("bridge: client read error", "err", err)
			h.metrics.RecordProtocolError(ctx, "client")
			continue
		}

		msg, ok := translateClient(ev)
		if !ok {
			log.Debug("bridge: ignoring client event", "type", ev.RawType)
			continue
		}

		if err := up.WriteJSON(ctx, msg); err != nil {
			if ctx.Err() == nil {
				log.Warn("bridge: upstream write failed", "err", err)
			}
			return
		}
		h.metrics.RecordRelayedEvent(ctx, "client_to_upstream", string(ev.Type))
	}
}

// relayUpstreamToClient drains the upstream connection, applies transcript
// and timing side effects, and forwards translated events to the client in
// strict receipt order.
func (h *Handler) relayUpstreamToClient(ctx context.Context, up UpstreamConn, log *slog.Logger) {
	for {
		ev, err := up.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Info("bridge: upstream disconnected")
			}
			return
		}

		switch ev.Type {
		case realtime.EventSessionCreated:
			log.Info("bridge: upstream session created")
		case realtime.EventSpeechStarted:
			log.Debug("bridge: speech started")
		case realtime.EventError:
			msg := "unknown error"
			var code string
			if ev.Error != nil {
				msg = ev.Error.Message
				code = ev.Error.Code
			}
			log.Warn("bridge: upstream error event", "code", code, "message", msg)
			h.metrics.RecordProtocolError(ctx, "upstream")
		case realtime.EventUnknown:
			log.Debug("bridge: ignoring upstream event", "type", ev.RawType)
		}

		act := translateUpstream(ev)
		now := time.Now().UTC()

		if act.speechStarted {
			h.sess.markSpeechStarted(now)
		}
		if act.speechStopped {
			h.sess.markSpeechStopped(now)
		}
		if act.appendRole != "" {
			var d time.Duration
			if act.appendRole == RoleUser {
				d = h.sess.consumeSpeechDuration(now)
			}
			h.sess.appendMessage(act.appendRole, act.appendText, d)
		}

		for _, se := range act.forward {
			data, err := se.Encode()
			if err != nil {
				log.Warn("bridge: encode server event", "err", err)
				continue
			}
			if err := h.client.Write(ctx, data); err != nil {
				if ctx.Err() == nil {
					log.Info("bridge: client disconnected during write")
				}
				return
			}
		}

		if len(act.forward) > 0 || act.appendRole != "" {
			h.metrics.RecordRelayedEvent(ctx, "upstream_to_client", string(ev.Type))
		}
	}
}
