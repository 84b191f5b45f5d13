package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/nodeprof/nodeprof/internal/document"
	"github.com/nodeprof/nodeprof/internal/events"
	"github.com/nodeprof/nodeprof/internal/pprofutil"
	"github.com/nodeprof/nodeprof/internal/serializer"
	"github.com/nodeprof/nodeprof/internal/storageutil"
	"github.com/nodeprof/nodeprof/internal/v8"
)

const (
	kindTime = "cpu"
	kindHeap = "heap"
)

type (
	// snapshotEnvelope is what we archive: the raw snapshot plus what we
	// need to re-serialize it the same way later.
	snapshotEnvelope struct {
		ProfileID    string `json:"profile_id"`
		Kind         string `json:"kind"`
		PeriodMicros int64  `json:"period_micros,omitempty"`
		LineLevel    bool   `json:"line_level,omitempty"`
		Received     int64  `json:"received"`

		TimeProfile *v8.TimeProfile       `json:"time_profile,omitempty"`
		HeapProfile *v8.AllocationProfile `json:"heap_profile,omitempty"`
	}
)

func snapshotStoragePath(profileID string) string {
	return "snapshots/" + profileID
}

func (e *environment) postTimeProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	periodMicros := e.config.DefaultPeriodMicros
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || p <= 0 {
			http.Error(w, "period must be a positive integer", http.StatusBadRequest)
			return
		}
		periodMicros = p
	}
	lineLevel := r.URL.Query().Get("line_numbers") == "true"

	p, err := v8.DecodeTimeProfile(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := serializer.TimeProfile(p, serializer.TimeOptions{
		PeriodMicros: periodMicros,
		LineLevel:    lineLevel,
		Resolver:     e.resolver,
	})
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	envelope := snapshotEnvelope{
		ProfileID:    uuid.New().String(),
		Kind:         kindTime,
		PeriodMicros: periodMicros,
		LineLevel:    lineLevel,
		Received:     time.Now().Unix(),
		TimeProfile:  p,
	}
	e.finishConversion(w, r, envelope, doc)
}

func (e *environment) postHeapProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	p, err := v8.DecodeAllocationProfile(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	received := time.Now()
	doc, err := serializer.HeapProfile(p, serializer.HeapOptions{
		StartTime: received,
		Resolver:  e.resolver,
	})
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	envelope := snapshotEnvelope{
		ProfileID:   uuid.New().String(),
		Kind:        kindHeap,
		Received:    received.Unix(),
		HeapProfile: p,
	}
	e.finishConversion(w, r, envelope, doc)
}

// finishConversion archives the snapshot, publishes the conversion event
// and writes the encoded artifact. Archive and event failures are reported
// but do not fail the request: the artifact is already built.
func (e *environment) finishConversion(w http.ResponseWriter, r *http.Request, envelope snapshotEnvelope, doc *document.Document) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)

	data, err := pprofutil.Encode(doc)
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	err = storageutil.CompressedWrite(ctx, e.snapshots, snapshotStoragePath(envelope.ProfileID), envelope)
	if err != nil {
		hub.CaptureException(err)
		log.Err(err).Str("profile_id", envelope.ProfileID).Msg("cannot archive snapshot")
	}

	err = e.events.Publish(ctx, events.ConvertedKafkaMessage{
		ProfileID:     envelope.ProfileID,
		Kind:          envelope.Kind,
		SampleCount:   len(doc.Samples),
		LocationCount: len(doc.Locations),
		DurationNS:    doc.DurationNanos,
		Received:      envelope.Received,
	})
	if err != nil {
		hub.CaptureException(err)
		log.Err(err).Str("profile_id", envelope.ProfileID).Msg("cannot publish conversion event")
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Profile-ID", envelope.ProfileID)
	_, _ = w.Write(data)
}

func (e *environment) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	ps := httprouter.ParamsFromContext(ctx)
	profileID := ps.ByName("profile_id")

	hub.Scope().SetTag("profile_id", profileID)

	var envelope snapshotEnvelope
	err := storageutil.UnmarshalCompressed(ctx, e.snapshots, snapshotStoragePath(profileID), &envelope)
	if err != nil {
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var doc *document.Document
	switch envelope.Kind {
	case kindTime:
		doc, err = serializer.TimeProfile(envelope.TimeProfile, serializer.TimeOptions{
			PeriodMicros: envelope.PeriodMicros,
			LineLevel:    envelope.LineLevel,
			Resolver:     e.resolver,
		})
	case kindHeap:
		doc, err = serializer.HeapProfile(envelope.HeapProfile, serializer.HeapOptions{
			StartTime: time.Unix(envelope.Received, 0),
			Resolver:  e.resolver,
		})
	default:
		hub.CaptureMessage("archived snapshot has unknown kind " + envelope.Kind)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if err := pprofutil.EncodeTo(w, doc); err != nil {
		hub.CaptureException(err)
	}
}
