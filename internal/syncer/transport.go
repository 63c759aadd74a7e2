package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/annotie/internal/record"
	"github.com/roach88/annotie/internal/store"
)

// SeqReader reports the highest seq a session has logged against an
// annotation, or 0 for a session with no entries.
type SeqReader interface {
	LastSeq(ctx context.Context, annotationID, session string) (int64, error)
}

// StoreTransport applies deliveries directly to a local SQLite store.
type StoreTransport struct {
	Store *store.Store
}

// Send merges the change-set into the stored annotation. A delivery whose
// id was already applied is acknowledged without writing.
func (t StoreTransport) Send(ctx context.Context, d Delivery) error {
	applied, err := t.Store.ApplyChangeSet(ctx, d.AnnotationID, d.ID, d.Session, d.Seq, d.ChangeSet)
	if err != nil {
		return err
	}
	if !applied {
		slog.Debug("change-set already applied", "annotation", d.AnnotationID, "changeset", shortID(d.ID))
	}
	return nil
}

// LastSeq reads the session's position from the store log.
func (t StoreTransport) LastSeq(ctx context.Context, annotationID, session string) (int64, error) {
	return t.Store.LastSeq(ctx, annotationID, session)
}

// HTTPTransport posts deliveries to the persistence endpoint as
// {"_method":"PATCH","data":...} envelopes.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport targets baseURL, for example http://localhost:8080.
// A nil client uses http.DefaultClient.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// AnnotationURL is the endpoint addressed by an annotation id.
func (t *HTTPTransport) AnnotationURL(annotationID string) string {
	return t.baseURL + "/annotations/" + url.PathEscape(annotationID)
}

// Send posts one envelope. Any non-2xx response is a *TransportError
// carrying the status code.
func (t *HTTPTransport) Send(ctx context.Context, d Delivery) error {
	env, err := record.NewEnvelope(d.ChangeSet)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.AnnotationURL(d.AnnotationID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(record.HeaderSession, d.Session)
	req.Header.Set(record.HeaderSeq, strconv.FormatInt(d.Seq, 10))
	req.Header.Set(record.HeaderChangeSet, d.ID)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &TransportError{StatusCode: resp.StatusCode, Err: errors.New(msg)}
}

// Fetch reads the persisted record of an annotation, so an editing session
// can start from what the service holds.
func (t *HTTPTransport) Fetch(ctx context.Context, annotationID string) (record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.AnnotationURL(annotationID), nil)
	if err != nil {
		return record.Record{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return record.Record{}, fmt.Errorf("fetch %s: %w", annotationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return record.Record{}, &TransportError{
			AnnotationID: annotationID,
			StatusCode:   resp.StatusCode,
			Err:          errors.New(strings.TrimSpace(string(raw))),
		}
	}
	var rec record.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return record.Record{}, fmt.Errorf("fetch %s: decode: %w", annotationID, err)
	}
	rec.Normalize()
	return rec, nil
}

// LastSeq scans the annotation's change-set log for session's highest seq.
func (t *HTTPTransport) LastSeq(ctx context.Context, annotationID, session string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.AnnotationURL(annotationID)+"/changesets", nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("read log of %s: %w", annotationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &TransportError{
			AnnotationID: annotationID,
			StatusCode:   resp.StatusCode,
			Err:          errors.New(strings.TrimSpace(string(raw))),
		}
	}
	var log []struct {
		Session string `json:"session"`
		Seq     int64  `json:"seq"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&log); err != nil {
		return 0, fmt.Errorf("read log of %s: decode: %w", annotationID, err)
	}
	var last int64
	for _, entry := range log {
		if entry.Session == session && entry.Seq > last {
			last = entry.Seq
		}
	}
	return last, nil
}
