package notify

import (
	"context"
	"errors"
	"time"

	"casino-relay/internal/metrics"
	"casino-relay/internal/notify/platforms"

	"github.com/rs/zerolog/log"
)

var errCircuitOpen = errors.New("circuit_open")

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			metrics.NotifyQueueLen.Set(float64(len(m.dispatchCh)))
			m.processJob(ctx, job)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job pushJob) {
	platform := job.Target.Platform
	adapter := m.adapters[platform]
	if adapter == nil {
		m.stats.dropped.Add(1)
		metrics.NotifyJobsTotal.WithLabelValues(platform, "unknown_platform").Inc()
		return
	}

	if err := m.beforeSend(job.key(), time.Now()); err != nil {
		metrics.NotifyJobsTotal.WithLabelValues(platform, "circuit_open").Inc()
		m.retryOrDrop(job, err)
		return
	}

	if err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, toPlatformMessage(job.Formatted)); err != nil {
		m.stats.failed.Add(1)
		metrics.NotifyJobsTotal.WithLabelValues(platform, "failed").Inc()
		m.afterFailure(job.key(), time.Now())
		m.retryOrDrop(job, err)
		return
	}

	m.stats.sent.Add(1)
	metrics.NotifyJobsTotal.WithLabelValues(platform, "sent").Inc()
	m.afterSuccess(job.key())
	if job.PanelTerminal {
		if f, ok := adapter.(platforms.PanelForgetter); ok {
			f.ForgetPanel(job.Target.Endpoint, job.Formatted.PanelKey)
		}
	}
}

func (m *Manager) retryOrDrop(job pushJob, err error) bool {
	if job.Attempt >= m.cfg.RetryMax {
		m.stats.dropped.Add(1)
		metrics.NotifyJobsTotal.WithLabelValues(job.Target.Platform, "retry_dropped").Inc()
		log.Warn().Err(err).Str("platform", job.Target.Platform).Str("event", job.Event.Type).
			Int("attempts", job.Attempt+1).Msg("notify_dropped")
		return false
	}
	job.Attempt++
	m.stats.retries.Add(1)
	metrics.NotifyJobsTotal.WithLabelValues(job.Target.Platform, "retry").Inc()
	m.retryQ.Enqueue(job, m.cfg.RetryBase*time.Duration(1<<(job.Attempt-1)))
	return true
}

func (m *Manager) beforeSend(key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (m *Manager) afterFailure(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= m.cfg.FailureThreshold {
		state.openUntil = now.Add(m.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	m.breakerByKey[key] = state
}

func (m *Manager) afterSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakerByKey, key)
}

func toPlatformMessage(msg FormattedMessage) platforms.Message {
	fields := make([]platforms.Field, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, platforms.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return platforms.Message{
		PanelKey:    msg.PanelKey,
		Title:       msg.Title,
		Content:     msg.Content,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
		Fields:      fields,
	}
}
