package api

import (
	"maps"

	"unitgo/internal/journal"
	"unitgo/internal/logging"
	"unitgo/loopback"
	"unitgo/unit"
)

// FromEntry converts a journal entry to its API representation.
func FromEntry(e journal.Entry) Request {
	dto := Request{
		ID:            e.ID,
		RequestID:     e.RequestID,
		Method:        e.Method,
		Target:        e.Target,
		Remote:        e.Remote,
		Status:        e.Status,
		RC:            e.RC,
		Fallback:      e.Fallback,
		RequestBytes:  e.RequestBytes,
		ResponseBytes: e.ResponseBytes,
		Chunks:        e.Chunks,
		DurationMS:    e.Duration.Milliseconds(),
		Error:         e.Error,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromEntries converts a slice of journal entries, preserving order.
func FromEntries(entries []journal.Entry) []Request {
	out := make([]Request, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromEntry(e))
	}
	return out
}

// FromRegistryStats converts a registry snapshot.
func FromRegistryStats(s unit.RegistryStats) RegistryStatus {
	return RegistryStatus{State: s.Status, Secondaries: s.Secondaries, Poisoned: s.Poisoned}
}

// FromLoopbackStats converts loopback daemon counters.
func FromLoopbackStats(s loopback.Stats) LoopbackStatus {
	return LoopbackStatus{
		Inits:        s.Inits,
		CtxAllocs:    s.CtxAllocs,
		RunOnces:     s.RunOnces,
		Runs:         s.Runs,
		Dones:        s.Dones,
		LiveContexts: s.LiveContexts,
		Dispatched:   s.Dispatched,
		Completed:    s.Completed,
		Abandoned:    s.Abandoned,
		ChunksInUse:  s.ChunksInUse,
	}
}

// FromJournalSummary converts journal totals.
func FromJournalSummary(path string, s journal.Summary, errMsg string) JournalStatus {
	return JournalStatus{
		Path:      path,
		Total:     s.Total,
		Failed:    s.Failed,
		Fallbacks: s.Fallbacks,
		Error:     errMsg,
	}
}

// FromLogEvents converts hub events. Filtering happens in the hub.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		dto := LogEvent{
			Sequence:  evt.Sequence,
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Context:   evt.Context,
			RequestID: evt.RequestID,
			Fields:    maps.Clone(evt.Fields),
		}
		if !evt.Timestamp.IsZero() {
			dto.Timestamp = evt.Timestamp.UTC().Format(dateTimeFormat)
		}
		out = append(out, dto)
	}
	return out
}
